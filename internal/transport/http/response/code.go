package response

// 业务错误码直接基于 HTTP 语义
const (
	CodeOK           = 0
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
	CodeUnavailable  = 503
)

// CodeMsgMap 集中管理 code - msg
var CodeMsgMap = map[int]string{
	CodeOK:           "OK",
	CodeBadRequest:   "Bad Request",
	CodeUnauthorized: "Unauthorized",
	CodeForbidden:    "Forbidden",
	CodeNotFound:     "Not Found",
	CodeConflict:     "Conflict",
	CodeServerError:  "Internal Server Error",
	CodeUnavailable:  "Service Unavailable",
}
