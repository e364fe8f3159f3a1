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

// Package script 实现用于聚合键派生的表达式引擎
// 支持 Painless 风格的表达式子集：doc 字段访问（单值/多值）、
// params 参数、算术运算、三元运算符和常用 Math 函数
package script

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Script 表示一个表达式脚本
type Script struct {
	Source string                 // 表达式源代码
	Params map[string]interface{} // 默认参数
}

// NewScript 创建新脚本
func NewScript(source string, params map[string]interface{}) *Script {
	return &Script{
		Source: source,
		Params: params,
	}
}

// ParseScript 从 ES 格式解析脚本
// 支持字符串形式和 {"source": "...", "params": {...}} 形式
func ParseScript(data interface{}) (*Script, error) {
	switch v := data.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("empty script source")
		}
		return NewScript(v, nil), nil
	case map[string]interface{}:
		s := &Script{}
		if source, ok := v["source"].(string); ok {
			s.Source = source
		} else if inline, ok := v["inline"].(string); ok {
			s.Source = inline
		}
		if params, ok := v["params"].(map[string]interface{}); ok {
			s.Params = params
		}
		if s.Source == "" {
			return nil, fmt.Errorf("script must have 'source' or 'inline' field")
		}
		return s, nil
	default:
		return nil, fmt.Errorf("invalid script format: %T", data)
	}
}

// Context 表达式执行上下文
// Doc 为当前文档的字段值，Params 为脚本参数
type Context struct {
	Doc    map[string]interface{}
	Params map[string]interface{}
}

// NewContext 创建执行上下文
func NewContext(doc, params map[string]interface{}) *Context {
	return &Context{Doc: doc, Params: params}
}

// Engine 表达式引擎
// 无内部可变状态（缓存自带锁），可在多个 goroutine 间共享
type Engine struct {
	cache *Cache
}

// NewEngine 创建表达式引擎（使用全局缓存）
func NewEngine() *Engine {
	return &Engine{cache: globalCache}
}

// NewEngineWithCache 创建带自定义缓存的表达式引擎
func NewEngineWithCache(cache *Cache) *Engine {
	return &Engine{cache: cache}
}

// Register 在缓存中登记脚本
// 每个脚本在构造期调用一次；Execute 的热路径上不再碰缓存锁
func (e *Engine) Register(s *Script) {
	if s == nil || s.Source == "" {
		return
	}
	e.cache.Touch(s.Source, s.Params)
}

// Execute 执行脚本并返回结果
// 结果可能是标量，也可能是多值字段产生的 []interface{}
func (e *Engine) Execute(s *Script, ctx *Context) (interface{}, error) {
	if s == nil || s.Source == "" {
		return nil, fmt.Errorf("empty script")
	}

	// 合并脚本默认参数（上下文参数优先）
	if s.Params != nil {
		merged := make(map[string]interface{}, len(s.Params))
		for k, v := range s.Params {
			merged[k] = v
		}
		for k, v := range ctx.Params {
			merged[k] = v
		}
		ctx = &Context{Doc: ctx.Doc, Params: merged}
	}

	return e.evaluate(strings.TrimSpace(s.Source), ctx)
}

// evaluate 解析并执行表达式
// 自顶向下按优先级尝试各种语法形式
func (e *Engine) evaluate(source string, ctx *Context) (interface{}, error) {
	if source == "" {
		return nil, nil
	}

	if result, ok, err := e.evaluateParentheses(source, ctx); ok {
		return result, err
	}
	if result, ok, err := e.evaluateTernary(source, ctx); ok {
		return result, err
	}
	if result, ok, err := e.evaluateComparison(source, ctx); ok {
		return result, err
	}
	if result, ok, err := e.evaluateArithmetic(source, ctx); ok {
		return result, err
	}
	if result, ok, err := e.evaluateMathFunction(source, ctx); ok {
		return result, err
	}
	if result, ok := e.evaluateFieldAccess(source, ctx); ok {
		return result, nil
	}
	if result, ok := evaluateLiteral(source); ok {
		return result, nil
	}

	return nil, fmt.Errorf("unsupported expression: %s", source)
}

// evaluateParentheses 处理整体被括号包裹的表达式
func (e *Engine) evaluateParentheses(source string, ctx *Context) (interface{}, bool, error) {
	if !strings.HasPrefix(source, "(") {
		return nil, false, nil
	}
	depth := 0
	for i := 0; i < len(source); i++ {
		switch source[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				if i < len(source)-1 {
					// 括号后还有内容，交给其他规则处理
					return nil, false, nil
				}
				result, err := e.evaluate(strings.TrimSpace(source[1:i]), ctx)
				return result, true, err
			}
		}
	}
	return nil, false, nil
}

// evaluateTernary 处理三元运算符 cond ? a : b
func (e *Engine) evaluateTernary(source string, ctx *Context) (interface{}, bool, error) {
	qIdx := indexOutsideGroups(source, "?")
	if qIdx < 0 {
		return nil, false, nil
	}
	cIdx := indexOutsideGroups(source[qIdx+1:], ":")
	if cIdx < 0 {
		return nil, false, nil
	}
	cIdx += qIdx + 1

	cond, err := e.evaluate(strings.TrimSpace(source[:qIdx]), ctx)
	if err != nil {
		return nil, true, err
	}
	if toBool(cond) {
		result, err := e.evaluate(strings.TrimSpace(source[qIdx+1:cIdx]), ctx)
		return result, true, err
	}
	result, err := e.evaluate(strings.TrimSpace(source[cIdx+1:]), ctx)
	return result, true, err
}

// evaluateComparison 处理比较表达式（主要供三元条件使用）
func (e *Engine) evaluateComparison(source string, ctx *Context) (interface{}, bool, error) {
	for _, op := range []string{">=", "<=", "!=", "==", ">", "<"} {
		idx := indexOutsideGroups(source, op)
		if idx <= 0 {
			continue
		}
		left, err := e.evaluate(strings.TrimSpace(source[:idx]), ctx)
		if err != nil {
			return nil, true, err
		}
		right, err := e.evaluate(strings.TrimSpace(source[idx+len(op):]), ctx)
		if err != nil {
			return nil, true, err
		}
		return compareValues(left, right, op), true, nil
	}
	return nil, false, nil
}

// evaluateArithmetic 处理算术表达式
// 先按低优先级运算符拆分，保证 * / % 先于 + - 求值
func (e *Engine) evaluateArithmetic(source string, ctx *Context) (interface{}, bool, error) {
	for _, ops := range [][]string{{"+", "-"}, {"*", "/", "%"}} {
		idx, op := lastOperator(source, ops)
		if idx <= 0 {
			continue
		}
		left, err := e.evaluate(strings.TrimSpace(source[:idx]), ctx)
		if err != nil {
			return nil, true, err
		}
		right, err := e.evaluate(strings.TrimSpace(source[idx+1:]), ctx)
		if err != nil {
			return nil, true, err
		}

		// 字符串拼接
		if op == "+" {
			if ls, ok := left.(string); ok {
				return ls + toString(right), true, nil
			}
			if rs, ok := right.(string); ok {
				return toString(left) + rs, true, nil
			}
		}

		l, r := toFloat64(left), toFloat64(right)
		switch op {
		case "+":
			return l + r, true, nil
		case "-":
			return l - r, true, nil
		case "*":
			return l * r, true, nil
		case "/":
			if r == 0 {
				return nil, true, fmt.Errorf("division by zero in expression: %s", source)
			}
			return l / r, true, nil
		case "%":
			if r == 0 {
				return nil, true, fmt.Errorf("division by zero in expression: %s", source)
			}
			return float64(int64(l) % int64(r)), true, nil
		}
	}
	return nil, false, nil
}

// mathFuncs 支持的一元 Math 函数
var mathFuncs = map[string]func(float64) float64{
	"Math.abs":   math.Abs,
	"Math.ceil":  math.Ceil,
	"Math.floor": math.Floor,
	"Math.round": math.Round,
	"Math.sqrt":  math.Sqrt,
	"Math.log":   math.Log,
	"Math.log10": math.Log10,
}

// evaluateMathFunction 处理 Math.xxx(...) 调用
func (e *Engine) evaluateMathFunction(source string, ctx *Context) (interface{}, bool, error) {
	for name, fn := range mathFuncs {
		if strings.HasPrefix(source, name+"(") && strings.HasSuffix(source, ")") {
			arg, err := e.evaluate(strings.TrimSpace(source[len(name)+1:len(source)-1]), ctx)
			if err != nil {
				return nil, true, err
			}
			return fn(toFloat64(arg)), true, nil
		}
	}

	if strings.HasPrefix(source, "Math.pow(") && strings.HasSuffix(source, ")") {
		args := strings.SplitN(source[9:len(source)-1], ",", 2)
		if len(args) != 2 {
			return nil, true, fmt.Errorf("Math.pow requires two arguments")
		}
		base, err := e.evaluate(strings.TrimSpace(args[0]), ctx)
		if err != nil {
			return nil, true, err
		}
		exp, err := e.evaluate(strings.TrimSpace(args[1]), ctx)
		if err != nil {
			return nil, true, err
		}
		return math.Pow(toFloat64(base), toFloat64(exp)), true, nil
	}

	return nil, false, nil
}

// docValuePattern 匹配 doc['field'].value（单值）
var docValuePattern = regexp.MustCompile(`^doc\[['"]([^'"]+)['"]\]\.value$`)

// docValuesPattern 匹配 doc['field'].values（多值）
var docValuesPattern = regexp.MustCompile(`^doc\[['"]([^'"]+)['"]\]\.values$`)

// paramsPattern 匹配 params['key'] 或 params.key
var paramsPattern = regexp.MustCompile(`^params\[['"]([^'"]+)['"]\]$|^params\.(\w+)$`)

// evaluateFieldAccess 处理 doc/params 字段访问
// doc['f'].value 取单值（多值字段取第一个），doc['f'].values 取全部值
func (e *Engine) evaluateFieldAccess(source string, ctx *Context) (interface{}, bool) {
	if m := docValuesPattern.FindStringSubmatch(source); m != nil {
		val, ok := ctx.Doc[m[1]]
		if !ok || val == nil {
			return []interface{}{}, true
		}
		if arr, ok := val.([]interface{}); ok {
			return arr, true
		}
		return []interface{}{val}, true
	}

	if m := docValuePattern.FindStringSubmatch(source); m != nil {
		val, ok := ctx.Doc[m[1]]
		if !ok {
			return nil, true
		}
		if arr, ok := val.([]interface{}); ok {
			if len(arr) == 0 {
				return nil, true
			}
			return arr[0], true
		}
		return val, true
	}

	if m := paramsPattern.FindStringSubmatch(source); m != nil {
		key := m[1]
		if key == "" {
			key = m[2]
		}
		val, ok := ctx.Params[key]
		if !ok {
			return nil, true
		}
		return val, true
	}

	return nil, false
}

// evaluateLiteral 处理字面量
func evaluateLiteral(source string) (interface{}, bool) {
	switch source {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null":
		return nil, true
	}

	if len(source) >= 2 {
		if (source[0] == '\'' && source[len(source)-1] == '\'') ||
			(source[0] == '"' && source[len(source)-1] == '"') {
			return source[1 : len(source)-1], true
		}
	}

	if num, err := strconv.ParseFloat(source, 64); err == nil {
		return num, true
	}

	return nil, false
}

// indexOutsideGroups 在字符串字面量、括号、方括号之外查找运算符
func indexOutsideGroups(source, op string) int {
	depth := 0
	inString := false
	quote := byte(0)
	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case inString:
			if c == quote {
				inString = false
			}
		case c == '\'' || c == '"':
			inString = true
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case depth == 0 && strings.HasPrefix(source[i:], op):
			return i
		}
	}
	return -1
}

// lastOperator 查找最右边的顶层运算符（左结合）
// 跳过一元符号和比较运算符的一部分
func lastOperator(source string, ops []string) (int, string) {
	bestIdx, bestOp := -1, ""
	depth := 0
	inString := false
	quote := byte(0)
	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case inString:
			if c == quote {
				inString = false
			}
			continue
		case c == '\'' || c == '"':
			inString = true
			quote = c
			continue
		case c == '(' || c == '[':
			depth++
			continue
		case c == ')' || c == ']':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, op := range ops {
			if string(c) != op {
				continue
			}
			// 开头的 + - 是一元符号，跳过
			if i == 0 {
				continue
			}
			// 前一个字符是运算符时（如 "3 * -2"），当前符号也是一元的
			prev := strings.TrimRight(source[:i], " ")
			if prev == "" {
				continue
			}
			last := prev[len(prev)-1]
			if strings.ContainsRune("+-*/%<>=?,:", rune(last)) {
				continue
			}
			if i > bestIdx {
				bestIdx, bestOp = i, op
			}
		}
	}
	return bestIdx, bestOp
}

// compareValues 比较两个值
func compareValues(left, right interface{}, op string) bool {
	if ls, lok := left.(string); lok {
		if rs, rok := right.(string); rok {
			switch op {
			case "==":
				return ls == rs
			case "!=":
				return ls != rs
			case ">":
				return ls > rs
			case "<":
				return ls < rs
			case ">=":
				return ls >= rs
			case "<=":
				return ls <= rs
			}
		}
	}

	l, r := toFloat64(left), toFloat64(right)
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case ">":
		return l > r
	case "<":
		return l < r
	case ">=":
		return l >= r
	case "<=":
		return l <= r
	}
	return false
}

// toBool 转换为布尔值
func toBool(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}

// toFloat64 转换为浮点数
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case uint64:
		return float64(val)
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		if num, err := strconv.ParseFloat(val, 64); err == nil {
			return num
		}
	}
	return 0
}

// toString 转换为字符串
func toString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
