package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kestrel0/ragdex/internal/log"
	"github.com/kestrel0/ragdex/internal/parser"
)

// MaxUploadSize bounds one uploaded file.
const MaxUploadSize = 50 << 20 // 50 MiB

// ChunkCounter reports how many chunks the store holds for a source.
type ChunkCounter interface {
	IDsBySource(source string) []string
}

// FilesHandler manages the watched folder over HTTP. It only moves
// files; indexing happens when the watcher sees the resulting events.
type FilesHandler struct {
	folder string
	index  ChunkCounter
	logger log.Logger
}

// NewFilesHandler creates a files handler rooted at folder.
func NewFilesHandler(folder string, index ChunkCounter, logger log.Logger) *FilesHandler {
	return &FilesHandler{folder: folder, index: index, logger: logger}
}

// RegisterRoutes registers file routes on the given mux.
func (h *FilesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/files", h.list)
	mux.HandleFunc("POST /api/files", h.upload)
	mux.HandleFunc("DELETE /api/files/{name}", h.remove)
}

// FileInfo is one entry in the folder listing.
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Chunks   int       `json:"chunks"`
}

// list returns the watched folder's files with their indexed chunk
// counts. Hidden files and subdirectories are not listed; the indexer
// ignores them too.
func (h *FilesHandler) list(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(h.folder)
	if err != nil {
		h.logger.Error("failed to read watched folder", "error", err)
		writeError(w, http.StatusInternalServerError, "read_folder", "failed to read watched folder")
		return
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:     name,
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
			Chunks:   len(h.index.IDsBySource(filepath.Join(h.folder, name))),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"total": len(files),
	})
}

// upload accepts one multipart file under the "file" field and writes
// it into the watched folder. The watcher picks up the create event and
// indexes it; the response only confirms the write.
func (h *FilesHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", "could not parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", `missing "file" field`)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	name, err := h.safeName(header.Filename)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_filename", err.Error())
		return
	}

	dst, err := os.Create(filepath.Join(h.folder, name))
	if err != nil {
		h.logger.Error("failed to create uploaded file", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "write_failed", "failed to store file")
		return
	}

	written, err := io.Copy(dst, file)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(h.folder, name))
		h.logger.Error("failed to write uploaded file", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "write_failed", "failed to store file")
		return
	}

	h.logger.Info("file uploaded", "name", name, "bytes", written)
	writeJSON(w, http.StatusCreated, map[string]any{
		"name": name,
		"size": written,
	})
}

// remove deletes a file from the watched folder. The watcher observes
// the remove event and drops the file's chunks.
func (h *FilesHandler) remove(w http.ResponseWriter, r *http.Request) {
	name, err := h.safeName(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_filename", err.Error())
		return
	}

	if err := os.Remove(filepath.Join(h.folder, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "not_found", "no such file")
			return
		}
		h.logger.Error("failed to delete file", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete file")
		return
	}

	h.logger.Info("file deleted", "name", name)
	writeJSON(w, http.StatusOK, map[string]any{"name": name})
}

// safeName validates a client-supplied file name: it must be a bare
// name inside the folder (no traversal), not hidden, and carry a
// supported extension.
func (h *FilesHandler) safeName(raw string) (string, error) {
	name := filepath.Base(strings.TrimSpace(raw))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", errors.New("empty file name")
	}
	if strings.HasPrefix(name, ".") {
		return "", errors.New("hidden files are not indexed")
	}
	if strings.ContainsAny(name, `/\`) {
		return "", errors.New("file name must not contain path separators")
	}
	if !parser.Supported(name) {
		return "", errors.New("unsupported file extension")
	}
	return name, nil
}
