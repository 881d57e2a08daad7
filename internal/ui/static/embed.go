// Пакет static — встроенные CSS и JS Records UI, раздаются по /static/*.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed css/app.css js/app.js
var content embed.FS

// FileSystem возвращает http.FileSystem для обработчика /static/*.
func FileSystem() http.FileSystem {
	return http.FS(content)
}

// FS возвращает fs.FS для прямого доступа к файлам.
func FS() fs.FS {
	return content
}
