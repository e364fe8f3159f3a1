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

package main

import (
	"context"
	"fmt"

	"github.com/olivere/elastic/v7"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	flagAddr        string
	flagAggType     string
	flagField       string
	flagScript      string
	flagSize        int
	flagShardSize   int
	flagMinDocCount int64
	flagOrder       string
	flagInclude     string
	flagInterval    float64
	flagCalendar    string
)

var queryCmd = &cobra.Command{
	Use:   "query <index>",
	Short: "Run a bucket aggregation against a running AggDB server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd.Context(), args[0])
	},
}

func init() {
	queryCmd.Flags().StringVar(&flagAddr, "addr", "http://127.0.0.1:9200", "server address")
	queryCmd.Flags().StringVar(&flagAggType, "type", "terms", "aggregation type: terms, histogram, date_histogram")
	queryCmd.Flags().StringVar(&flagField, "field", "", "field to bucket on")
	queryCmd.Flags().StringVar(&flagScript, "script", "", "script to bucket on (instead of field)")
	queryCmd.Flags().IntVar(&flagSize, "size", 10, "number of buckets to return")
	queryCmd.Flags().IntVar(&flagShardSize, "shard-size", 0, "per-shard candidate count (0 = server default)")
	queryCmd.Flags().Int64Var(&flagMinDocCount, "min-doc-count", 1, "minimum document count per bucket")
	queryCmd.Flags().StringVar(&flagOrder, "order", "count-desc", "bucket order: count-desc, count-asc, key-asc, key-desc")
	queryCmd.Flags().StringVar(&flagInclude, "include", "", "regexp filter for term buckets")
	queryCmd.Flags().Float64Var(&flagInterval, "interval", 0, "numeric interval for histogram")
	queryCmd.Flags().StringVar(&flagCalendar, "calendar-interval", "", "calendar interval for date_histogram")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(ctx context.Context, indexName string) error {
	if flagField == "" && flagScript == "" {
		return fmt.Errorf("either --field or --script is required")
	}

	client, err := elastic.NewClient(
		elastic.SetURL(flagAddr),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", flagAddr, err)
	}

	agg, err := buildAggregation()
	if err != nil {
		return err
	}

	res, err := client.Search(indexName).Size(0).Aggregation("buckets", agg).Do(ctx)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	return printBuckets(res)
}

// buildAggregation 按命令行参数装配聚合请求
func buildAggregation() (elastic.Aggregation, error) {
	switch flagAggType {
	case "terms":
		agg := elastic.NewTermsAggregation().Size(flagSize).MinDocCount(int(flagMinDocCount))
		if flagField != "" {
			agg = agg.Field(flagField)
		}
		if flagScript != "" {
			agg = agg.Script(elastic.NewScript(flagScript))
		}
		if flagShardSize > 0 {
			agg = agg.ShardSize(flagShardSize)
		}
		if flagInclude != "" {
			agg = agg.Include(flagInclude)
		}
		switch flagOrder {
		case "count-desc":
			agg = agg.OrderByCountDesc()
		case "count-asc":
			agg = agg.OrderByCountAsc()
		case "key-asc":
			agg = agg.OrderByKeyAsc()
		case "key-desc":
			agg = agg.OrderByKeyDesc()
		default:
			return nil, fmt.Errorf("unknown order: %s", flagOrder)
		}
		return agg, nil
	case "histogram":
		if flagInterval <= 0 {
			return nil, fmt.Errorf("--interval is required for histogram")
		}
		agg := elastic.NewHistogramAggregation().Interval(flagInterval).MinDocCount(flagMinDocCount)
		if flagField != "" {
			agg = agg.Field(flagField)
		}
		if flagScript != "" {
			agg = agg.Script(elastic.NewScript(flagScript))
		}
		return agg, nil
	case "date_histogram":
		if flagCalendar == "" {
			return nil, fmt.Errorf("--calendar-interval is required for date_histogram")
		}
		agg := elastic.NewDateHistogramAggregation().CalendarInterval(flagCalendar).MinDocCount(flagMinDocCount)
		if flagField != "" {
			agg = agg.Field(flagField)
		}
		if flagScript != "" {
			agg = agg.Script(elastic.NewScript(flagScript))
		}
		return agg, nil
	default:
		return nil, fmt.Errorf("unknown aggregation type: %s", flagAggType)
	}
}

// printBuckets 以对齐表格输出桶列表，计数带千分位
func printBuckets(res *elastic.SearchResult) error {
	p := message.NewPrinter(language.English)

	switch flagAggType {
	case "terms":
		terms, ok := res.Aggregations.Terms("buckets")
		if !ok {
			return fmt.Errorf("no terms aggregation in response")
		}
		for _, b := range terms.Buckets {
			p.Printf("%12d  %v\n", b.DocCount, b.Key)
		}
		if terms.SumOfOtherDocCount > 0 {
			p.Printf("%12d  (other)\n", terms.SumOfOtherDocCount)
		}
		if terms.DocCountErrorUpperBound > 0 {
			p.Printf("doc count error upper bound: %d\n", terms.DocCountErrorUpperBound)
		}
	case "histogram":
		hist, ok := res.Aggregations.Histogram("buckets")
		if !ok {
			return fmt.Errorf("no histogram aggregation in response")
		}
		for _, b := range hist.Buckets {
			p.Printf("%12d  %g\n", b.DocCount, b.Key)
		}
	case "date_histogram":
		hist, ok := res.Aggregations.DateHistogram("buckets")
		if !ok {
			return fmt.Errorf("no date_histogram aggregation in response")
		}
		for _, b := range hist.Buckets {
			label := fmt.Sprintf("%g", b.Key)
			if b.KeyAsString != nil {
				label = *b.KeyAsString
			}
			p.Printf("%12d  %s\n", b.DocCount, label)
		}
	}

	p.Printf("total hits: %d, took: %dms\n", res.TotalHits(), res.TookInMillis)
	return nil
}
