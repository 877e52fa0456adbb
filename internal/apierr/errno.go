package apierr

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"syscall"
)

// errnoStatus maps POSIX error names to HTTP status codes.
var errnoStatus = map[string]int{
	"ENOENT":       http.StatusNotFound,
	"EACCES":       http.StatusForbidden,
	"EPERM":        http.StatusForbidden,
	"EEXIST":       http.StatusConflict,
	"ENOSPC":       http.StatusInsufficientStorage,
	"EDQUOT":       http.StatusInsufficientStorage,
	"EFBIG":        http.StatusRequestEntityTooLarge,
	"ENAMETOOLONG": http.StatusRequestURITooLong,
	"EISDIR":       http.StatusBadRequest,
	"ENOTDIR":      http.StatusBadRequest,
	"EINVAL":       http.StatusBadRequest,
	"EMFILE":       http.StatusServiceUnavailable,
	"ENFILE":       http.StatusServiceUnavailable,
	"EBUSY":        http.StatusServiceUnavailable,
	"ECONNREFUSED": http.StatusServiceUnavailable,
	"ETIMEDOUT":    http.StatusGatewayTimeout,
	"EROFS":        http.StatusInternalServerError,
	"EIO":          http.StatusInternalServerError,
}

var errnoNames = map[syscall.Errno]string{
	syscall.ENOENT:       "ENOENT",
	syscall.EACCES:       "EACCES",
	syscall.EPERM:        "EPERM",
	syscall.EEXIST:       "EEXIST",
	syscall.ENOSPC:       "ENOSPC",
	syscall.EDQUOT:       "EDQUOT",
	syscall.EFBIG:        "EFBIG",
	syscall.ENAMETOOLONG: "ENAMETOOLONG",
	syscall.EISDIR:       "EISDIR",
	syscall.ENOTDIR:      "ENOTDIR",
	syscall.EINVAL:       "EINVAL",
	syscall.EMFILE:       "EMFILE",
	syscall.ENFILE:       "ENFILE",
	syscall.EBUSY:        "EBUSY",
	syscall.ECONNREFUSED: "ECONNREFUSED",
	syscall.ETIMEDOUT:    "ETIMEDOUT",
	syscall.EROFS:        "EROFS",
	syscall.EIO:          "EIO",
}

// ErrnoCode extracts a POSIX error name from err, looking through wrapped
// *fs.PathError, *os.LinkError and *os.SyscallError values. Errors that only
// satisfy the fs sentinel errors map to their closest errno.
func ErrnoCode(err error) (string, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name, ok := errnoNames[errno]; ok {
			return name, true
		}
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "ENOENT", true
	case errors.Is(err, fs.ErrPermission):
		return "EACCES", true
	case errors.Is(err, fs.ErrExist):
		return "EEXIST", true
	case errors.Is(err, os.ErrDeadlineExceeded):
		return "ETIMEDOUT", true
	}
	return "", false
}

// StatusForErrno returns the HTTP status for a POSIX error name, or 500.
func StatusForErrno(code string) int {
	if s, ok := errnoStatus[strings.ToUpper(code)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// userMessages holds the text shown to end users for known error codes.
var userMessages = map[string]string{
	"ENOENT":                         "File not found. Please try again.",
	"EACCES":                         "Permission denied. Please contact support.",
	"EPERM":                          "Permission denied. Please contact support.",
	"ENOSPC":                         "Insufficient storage. Please free up space.",
	"EEXIST":                         "A file with that name already exists.",
	"ETIMEDOUT":                      "The operation timed out. Please try again.",
	"ECONNREFUSED":                   "Connection refused. Please check your connection.",
	"AI_ERROR":                       "AI processing failed. Please try again in a few moments.",
	"AI_TIMEOUT":                     "AI processing timed out. Please try again or reduce the content size.",
	"AI_QUOTA_EXCEEDED":              "AI processing quota exceeded. Please upgrade your plan or wait for your quota to reset.",
	"AI_RATE_LIMIT":                  "AI processing rate limit reached. Please wait a moment and try again.",
	"PUBLISHING_ERROR":               "Publishing failed. Please check your platform connection and try again.",
	"PUBLISHING_AUTH_ERROR":          "Publishing authentication failed. Please reconnect your account in settings.",
	"PUBLISHING_RATE_LIMIT":          "Publishing rate limit reached. Please wait before publishing again.",
	"PUBLISHING_VALIDATION_ERROR":    "Your content does not meet platform requirements. Please review and adjust it.",
	"PUBLISHING_SERVICE_UNAVAILABLE": "Publishing service is temporarily unavailable. Please try again in a few minutes.",
	"FORMAT_ERROR":                   "Format conversion failed. Please try a different format.",
	"QUOTA_EXCEEDED":                 "Quota exceeded. Please upgrade your plan.",
	"VALIDATION_ERROR":               "Validation failed. Please check your input and try again.",
	"NETWORK_ERROR":                  "Network error occurred. Please check your internet connection and try again.",
	"STORAGE_ERROR":                  "Storage error. Please contact support if this persists.",
}

// codeSearchOrder is the order used when matching codes against error text.
var codeSearchOrder = []string{
	"PUBLISHING_SERVICE_UNAVAILABLE", "PUBLISHING_VALIDATION_ERROR", "PUBLISHING_RATE_LIMIT",
	"PUBLISHING_AUTH_ERROR", "PUBLISHING_ERROR",
	"AI_QUOTA_EXCEEDED", "AI_RATE_LIMIT", "AI_TIMEOUT", "AI_ERROR",
	"QUOTA_EXCEEDED", "VALIDATION_ERROR", "FORMAT_ERROR", "NETWORK_ERROR", "STORAGE_ERROR",
	"ENOENT", "EACCES", "EPERM", "ENOSPC", "EEXIST", "ETIMEDOUT", "ECONNREFUSED",
}

// UserMessage returns a user-facing message for code. When code is unknown
// the error text is searched case-insensitively for a known code.
func UserMessage(code string, err error) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	if err != nil {
		lower := strings.ToLower(err.Error())
		for _, k := range codeSearchOrder {
			if strings.Contains(lower, strings.ToLower(k)) {
				return userMessages[k]
			}
		}
	}
	return "An unexpected error occurred. Please try again."
}
