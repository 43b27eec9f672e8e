package errno

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrInvalidParam = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrNotFound     = &Errno{Code: 404, Message: "Not found"}

	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error"}
	ErrUnknown        = &Errno{Code: 510, Message: "Unknown error"}

	// 业务错误码
	ErrPlaylistNotFound   = &Errno{Code: 21001, Message: "Playlist file not found"}
	ErrPlaylistRead       = &Errno{Code: 21002, Message: "Unable to read playlist file"}
	ErrPlaylistWrite      = &Errno{Code: 21003, Message: "Unable to write playlist file"}
	ErrSourceFileNotFound = &Errno{Code: 21004, Message: "Source media file not found"}
	ErrNoInputRendition   = &Errno{Code: 21005, Message: "No valid input rendition found"}
	ErrTranscodeFailed    = &Errno{Code: 21006, Message: "Transcode failed"}
	ErrProbeFailed        = &Errno{Code: 21007, Message: "Media probe failed"}
	ErrQueueClosed        = &Errno{Code: 21008, Message: "Job queue is closed"}
	ErrUnknownJobKind     = &Errno{Code: 21009, Message: "Unknown job kind"}
	ErrBackendRequest     = &Errno{Code: 21010, Message: "Backend request failed"}
)
