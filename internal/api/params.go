// Package api 提供HTTP API处理器实现。
// API层负责处理HTTP请求/响应，进行数据验证和格式转换。
package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// parsePathID 从 URL 路径的指定段提取数字 ID。
// 例如 /api/v1/orders/{id} 的 ID 位于第 4 段（从 0 开始计数）。
func parsePathID(r *http.Request, index int) (int64, bool) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) <= index {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[index], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parsePage 解析分页页码，无效时返回 1。
func parsePage(query url.Values) int {
	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			return page
		}
	}
	return 1
}

// parsePageSize 解析分页大小，无效时返回 20，上限 100。
func parsePageSize(query url.Values) int {
	if pageSizeStr := query.Get("page_size"); pageSizeStr != "" {
		if pageSize, err := strconv.Atoi(pageSizeStr); err == nil && pageSize > 0 && pageSize <= 100 {
			return pageSize
		}
	}
	return 20
}

// queryInt64 解析可选的 int64 查询参数
func queryInt64(query url.Values, name string) *int64 {
	if s := query.Get(name); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &v
		}
	}
	return nil
}

// queryString 解析可选的字符串查询参数
func queryString(query url.Values, name string) *string {
	if s := query.Get(name); s != "" {
		return &s
	}
	return nil
}
