package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/xelth-com/palletdamage/internal/middleware"
	"github.com/xelth-com/palletdamage/internal/models"
)

const maxUploadSize = 32 << 20

var safeName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// PatchRequest is a partial update of a session document
type PatchRequest struct {
	Fields map[string]string `json:"fields"`
}

func (r *Router) listPending(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.store.Pending(middleware.Username(req)))
}

func (r *Router) getDetails(w http.ResponseWriter, req *http.Request) {
	details, err := r.store.Details(mux.Vars(req)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

func (r *Router) getSummary(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.store.Summary(mux.Vars(req)["id"]))
}

func (r *Router) patchSession(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	var patch PatchRequest
	if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(patch.Fields) == 0 {
		respondError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	if err := r.store.Patch(id, middleware.Username(req), patch.Fields); err != nil {
		respondStoreError(w, err)
		return
	}
	r.notify("session_updated", id)
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) deleteSession(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if err := r.store.Delete(id); err != nil {
		respondStoreError(w, err)
		return
	}
	if r.storageDir != "" && safeName.MatchString(id) {
		os.RemoveAll(filepath.Join(r.storageDir, id))
	}
	r.notify("session_deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) finalize(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if err := r.store.Finalize(id); err != nil {
		respondStoreError(w, err)
		return
	}
	log.Printf("✅ Session %s finalized by %s", id, middleware.Username(req))
	r.notify("session_finalized", id)
	w.WriteHeader(http.StatusNoContent)
}

// uploadImage stores a pallet photo. Sending the file id of an earlier upload
// overwrites that file instead of creating a new one.
func (r *Router) uploadImage(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if err := req.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	index, err := strconv.Atoi(req.FormValue("pallet_index"))
	if err != nil || index < 0 {
		respondError(w, http.StatusBadRequest, "Invalid pallet_index")
		return
	}
	imageType := req.FormValue("image_type")
	if !safeName.MatchString(imageType) {
		respondError(w, http.StatusBadRequest, "Invalid image_type")
		return
	}

	key := models.PalletPath(index, "images."+imageType)
	fileID := req.FormValue("file_id")
	if existing, ok := r.store.FileID(id, key); !ok || existing != fileID {
		fileID = uuid.New().String()
	}

	if err := r.saveUpload(req, id, fileID+".jpg"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.store.AttachFile(id, middleware.Username(req), key, fileID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.UploadedFile{FileID: fileID})
}

func (r *Router) uploadPDF(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if err := req.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	lang := req.FormValue("language")
	if !safeName.MatchString(lang) {
		respondError(w, http.StatusBadRequest, "Invalid language")
		return
	}
	name := "report_" + lang + ".pdf"
	if err := r.saveUpload(req, id, name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.store.AttachFile(id, middleware.Username(req), "pdf."+lang, name); err != nil {
		respondStoreError(w, err)
		return
	}
	r.notify("session_updated", id)
	w.WriteHeader(http.StatusNoContent)
}

// saveUpload copies the "file" part into <storageDir>/<session>/<name>.
// Without a storage dir the content is only validated and dropped.
func (r *Router) saveUpload(req *http.Request, sessionID, name string) error {
	file, _, err := req.FormFile("file")
	if err != nil {
		return fmt.Errorf("file is required")
	}
	defer file.Close()

	if r.storageDir == "" {
		_, err := io.Copy(io.Discard, file)
		return err
	}
	if !safeName.MatchString(sessionID) {
		return fmt.Errorf("invalid session id")
	}
	dir := filepath.Join(r.storageDir, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	out, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSessionFinalized):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
