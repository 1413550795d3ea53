package api

import (
	"errors"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"docsearch/internal/domain"
)

const (
	msgCreated    = "Vectorstore created successfully."
	msgSaved      = "Text saved to file successfully."
	msgNothingSet = "No text found to save."
	msgAdded      = "Files added to vectorstore successfully."
	msgDeleted    = "Vectorstore deleted successfully."
)

// multipartMemory is the part of an upload kept in memory; the rest spills to disk.
const multipartMemory = 32 << 20

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := createRequest{Name: r.FormValue("name"), Files: uploadedFiles(r)}
	if !s.valid(w, r, req) {
		return
	}
	up, err := saveUploads(s.docsDir, req.Files)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer up.cleanup()
	if len(up.skipped) > 0 {
		requestLogger(s.logger, r).Info("skipping unsupported uploads", zap.Strings("files", up.skipped))
	}

	stats, err := s.svc.CreateIndex(r.Context(), req.Name, up.dir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	requestLogger(s.logger, r).Info("vectorstore created",
		zap.String("index", req.Name), zap.Int("files", len(req.Files)), zap.Int("chunks", stats.Chunks))
	writeJSON(w, http.StatusOK, messageResponse{Message: msgCreated})
}

func (s *Server) handleAddFiles(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := addFilesRequest{Name: r.FormValue("nombre_db_vectorial"), Files: uploadedFiles(r)}
	if !s.valid(w, r, req) {
		return
	}
	up, err := saveUploads(s.docsDir, req.Files)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer up.cleanup()
	if len(up.skipped) > 0 {
		requestLogger(s.logger, r).Info("skipping unsupported uploads", zap.Strings("files", up.skipped))
	}

	stats, err := s.svc.AddFiles(r.Context(), req.Name, up.dir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	requestLogger(s.logger, r).Info("files added",
		zap.String("index", req.Name), zap.Int("files", len(req.Files)), zap.Int("chunks", stats.Chunks))
	writeJSON(w, http.StatusOK, messageResponse{Message: msgAdded})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := searchRequest{Name: q.Get("name_database"), Query: q.Get("query"), Source: q.Get("fuente")}
	if !s.valid(w, r, req) {
		return
	}
	results, err := s.svc.Search(r.Context(), req.Name, req.Query, req.Source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: toSearchResults(results)})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	req := indexRequest{Name: r.URL.Query().Get("nombre_db_vectorial")}
	if !s.valid(w, r, req) {
		return
	}
	sources, err := s.svc.ListSources(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sourcesResponse{Sources: sources})
}

func (s *Server) handleTextsBySource(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := sourceRequest{Name: q.Get("nombre_db_vectorial"), Source: q.Get("fuente")}
	if !s.valid(w, r, req) {
		return
	}
	texts, err := s.svc.ExtractTexts(r.Context(), req.Name, req.Source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, textsResponse{Texts: texts})
}

func (s *Server) handleSaveTemp(w http.ResponseWriter, r *http.Request) {
	req := sourceRequest{Name: r.FormValue("nombre_db_vectorial"), Source: r.FormValue("fuente")}
	if !s.valid(w, r, req) {
		return
	}
	path, saved, err := s.svc.SaveTextToTemp(r.Context(), req.Name, req.Source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !saved {
		writeJSON(w, http.StatusOK, messageResponse{Message: msgNothingSet})
		return
	}
	requestLogger(s.logger, r).Info("text saved", zap.String("index", req.Name), zap.String("path", path))
	writeJSON(w, http.StatusOK, messageResponse{Message: msgSaved})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	req := indexRequest{Name: r.FormValue("nombre_db_vectorial")}
	if !s.valid(w, r, req) {
		return
	}
	if err := s.svc.DeleteIndex(r.Context(), req.Name); err != nil {
		s.writeError(w, r, err)
		return
	}
	requestLogger(s.logger, r).Info("vectorstore deleted", zap.String("index", req.Name))
	writeJSON(w, http.StatusOK, messageResponse{Message: msgDeleted})
}

// parseUpload reads a multipart body. A non-multipart body is not an error
// here: the missing files are reported by validation.
func parseUpload(r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	return err
}

func uploadedFiles(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File["files"]
}

func toSearchResults(results []domain.SearchResult) []searchResult {
	out := make([]searchResult, len(results))
	for i, res := range results {
		meta := res.Chunk.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		out[i] = searchResult{PageContent: res.Chunk.Text, Metadata: meta, Score: res.Score}
	}
	return out
}
