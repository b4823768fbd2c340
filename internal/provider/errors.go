package provider

import (
	"context"
	"errors"
	"strings"
)

// 数据采集过程中的哨兵错误。调用方用 errors.Is 区分失败阶段。
var (
	// ErrTriggerFailed 表示数据集触发请求没有返回快照 ID。
	ErrTriggerFailed = errors.New("dataset trigger returned no snapshot id")

	// ErrCollectionFailed 表示数据集采集以 failed 状态终止。
	ErrCollectionFailed = errors.New("dataset collection failed")

	// ErrPollTimeout 表示轮询次数用尽后快照仍未就绪。
	ErrPollTimeout = errors.New("dataset polling timed out")

	// ErrZoneNotFound 表示指定的解锁 Zone 不存在。
	ErrZoneNotFound = errors.New("unlocker zone not found")
)

// providerErrorType 采集错误类型
type providerErrorType int

const (
	errTypeUnknown providerErrorType = iota
	errTypeTimeout
	errTypeBlocked // 403/429 等被拒绝
	errTypeNetwork
	errTypeCollection // 数据集侧失败
)

// classifyError 统一的错误分类函数
func classifyError(err error) providerErrorType {
	if err == nil {
		return errTypeUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errTypeTimeout
	}
	if errors.Is(err, ErrPollTimeout) {
		return errTypeTimeout
	}
	if errors.Is(err, ErrCollectionFailed) || errors.Is(err, ErrTriggerFailed) {
		return errTypeCollection
	}

	msg := strings.ToLower(err.Error())

	blockedKeywords := []string{
		"403", "429", "forbidden", "too many requests", "access denied",
	}
	for _, kw := range blockedKeywords {
		if strings.Contains(msg, kw) {
			return errTypeBlocked
		}
	}

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return errTypeTimeout
	}

	networkKeywords := []string{"connection", "no such host", "eof"}
	for _, kw := range networkKeywords {
		if strings.Contains(msg, kw) {
			return errTypeNetwork
		}
	}

	return errTypeUnknown
}

// ClassifyError 返回用于 metrics 的错误类型字符串。
func ClassifyError(err error) string {
	switch classifyError(err) {
	case errTypeTimeout:
		return "timeout"
	case errTypeBlocked:
		return "blocked"
	case errTypeNetwork:
		return "network_error"
	case errTypeCollection:
		return "collection_failed"
	default:
		return "unknown"
	}
}
