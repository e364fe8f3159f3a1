// Copyright (c) 2024 AggDB Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package handler

import (
	"net/http"

	"github.com/lscgzwd/aggdb/protocols/es/http/common"
	"github.com/lscgzwd/aggdb/protocols/es/index"
)

// 对外宣告的兼容版本
const (
	serverName        = "aggdb"
	compatibleVersion = "7.10.0"
)

// ClusterHandler 处理集群级请求
type ClusterHandler struct {
	indexes *index.Manager
}

// NewClusterHandler 创建集群处理器
func NewClusterHandler(indexes *index.Manager) *ClusterHandler {
	return &ClusterHandler{indexes: indexes}
}

// Root 版本横幅，客户端用它探测兼容性
// GET /
func (h *ClusterHandler) Root(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"name":         serverName,
		"cluster_name": serverName,
		"version": map[string]interface{}{
			"number":         compatibleVersion,
			"build_flavor":   "oss",
			"lucene_version": "8.7.0",
		},
		"tagline": "You Know, for Aggregations",
	}
	if err := common.WriteRawJSON(w, http.StatusOK, payload); err != nil {
		common.HandleError(w, err)
	}
}

// Health 集群健康状态
// GET /_cluster/health
func (h *ClusterHandler) Health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"cluster_name":    serverName,
		"status":          "green",
		"number_of_nodes": 1,
		"active_shards":   h.activeShards(),
		"timed_out":       false,
	}
	if err := common.WriteRawJSON(w, http.StatusOK, payload); err != nil {
		common.HandleError(w, err)
	}
}

// activeShards 当前全部索引的分片总数
func (h *ClusterHandler) activeShards() int {
	total := 0
	for _, name := range h.indexes.List() {
		if idx, err := h.indexes.Get(name); err == nil {
			total += idx.NumShards()
		}
	}
	return total
}
