package mailmap

import "strings"

var mimeByExtension = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"zip":  "application/zip",
}

// GuessContentType maps a filename extension to a MIME type. Unknown
// extensions map to application/octet-stream.
func GuessContentType(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "application/octet-stream"
	}
	if mime, ok := mimeByExtension[strings.ToLower(filename[idx+1:])]; ok {
		return mime
	}
	return "application/octet-stream"
}
