package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ButyrinIA/postadmin/internal/gateway"
	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/querycodec"
	"github.com/go-chi/chi/v5"
)

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid post id %q", gateway.ErrInvalidArgument, chi.URLParam(r, "id"))
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %w", gateway.ErrInvalidArgument, err)
	}
	return nil
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	res, err := s.gw.List(r.Context(), querycodec.Parse(r.URL.RawQuery))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	post, err := s.gw.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var dto models.CreatePostDto
	if err := decode(r, &dto); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.gw.Create(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var dto models.UpdatePostDto
	if err := decode(r, &dto); err != nil {
		writeError(w, err)
		return
	}
	dto.ID = id

	if err := s.gw.Update(r.Context(), dto); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.gw.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) batchUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var dto models.BatchUpdatePostsStatusDto
	if err := decode(r, &dto); err != nil {
		writeError(w, err)
		return
	}
	if err := s.gw.BatchUpdateStatus(r.Context(), dto); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
