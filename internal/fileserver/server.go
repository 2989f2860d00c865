// Package fileserver streams finished artifacts to clients holding a signed
// download token. Tokens carry the owner and artifact ref, so this path needs
// no session auth and no job-store round trip.
package fileserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/montygracey/mediaconverter/internal/core/artifact"
)

// Server serves files for /dl/{token}/{filename} routes.
type Server struct {
	signer    *Signer
	artifacts *artifact.Dir
}

func NewServer(signer *Signer, artifacts *artifact.Dir) *Server {
	return &Server{signer: signer, artifacts: artifacts}
}

// ServeFile is the http.HandlerFunc for /dl/{token}/{filename} routes.
// Safe to retry: it reads storage and mutates nothing.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/dl/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}
	token := parts[0]

	jobID, ref, ownerID, err := s.signer.Verify(token)
	if err != nil {
		log.Debug().Err(err).Msg("invalid download token")
		http.Error(w, "invalid or expired link", http.StatusForbidden)
		return
	}

	f, meta, err := s.artifacts.Open(r.Context(), ref)
	if err != nil {
		log.Debug().Err(err).Str("job_id", jobID).Str("artifact", ref).Msg("artifact not found")
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer func() { _ = f.Close() }()

	log.Debug().Str("job_id", jobID).Str("owner", ownerID).Str("artifact", ref).Msg("serving artifact")

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, ref))

	// ServeContent handles Range requests automatically
	http.ServeContent(w, r, ref, meta.ModTime, f)
}
