package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/salesops/internal/coaching"
	"github.com/JonMunkholm/salesops/internal/core"
)

// multipartOverhead is added to the file size limit for form boundaries
// and headers.
const multipartOverhead = 1 << 20

var (
	errBadRequest   = errors.New("invalid request")
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.service.LimiterStatus()
	writeJSON(w, map[string]any{
		"status":            "ok",
		"imports_running":   status.Active,
		"imports_available": status.Available,
	})
}

func (s *Server) handleListProducers(w http.ResponseWriter, r *http.Request) {
	producers, err := s.service.Store().ListProducers(r.Context())
	if err != nil {
		respondError(w, r, fmt.Errorf("list producers: %w", err), 0)
		return
	}
	if producers == nil {
		producers = []core.Producer{}
	}
	writeJSON(w, producers)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.service.Store().ListSources(r.Context())
	if err != nil {
		respondError(w, r, fmt.Errorf("list sources: %w", err), 0)
		return
	}
	if sources == nil {
		sources = []core.Source{}
	}
	writeJSON(w, sources)
}

// handleDownloadTemplate serves the header-only import template.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.TemplateCSV(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="daily_activity_template.csv"`)
	w.Write(data)
}

func (s *Server) handleValidateImport(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	result, err := s.service.ValidateCSV(WithRequestMetadata(r.Context(), r), fileName, data)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, result)
}

// handleImport validates and saves an upload. A file that fails validation
// gets 422 with the full report so the operator can fix every row at once.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	report, err := s.service.ImportCSV(WithRequestMetadata(r.Context(), r), fileName, data)
	switch {
	case errors.Is(err, core.ErrValidationFailed) && report != nil:
		writeJSONStatus(w, http.StatusUnprocessableEntity, report)
	case err != nil:
		respondError(w, r, err, 0)
	default:
		writeJSON(w, report)
	}
}

// readUpload reads the multipart "file" field, enforcing the size limit and
// the CSV type gate.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return "", nil, fmt.Errorf("%w: limit %d bytes", errFileTooLarge, maxSize)
		}
		return "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	if !core.IsCSVUpload(header.Filename, header.Header.Get("Content-Type")) {
		return "", nil, fmt.Errorf("%w: %s", core.ErrNotCSV, header.Filename)
	}
	if maxSize > 0 && header.Size > maxSize {
		return "", nil, fmt.Errorf("%w: %d bytes exceeds %d", errFileTooLarge, header.Size, maxSize)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

// handleSaveEntry saves one manually entered daily record.
func (s *Server) handleSaveEntry(w http.ResponseWriter, r *http.Request) {
	var entry core.CanonicalEntry
	if err := decodeJSON(r, &entry); err != nil {
		respondError(w, r, err, 0)
		return
	}

	saved, err := s.service.SaveEntry(r.Context(), entry)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSONStatus(w, http.StatusCreated, saved)
}

func (s *Server) handleTeamMetrics(w http.ResponseWriter, r *http.Request) {
	if s.coach == nil {
		respondError(w, r, coaching.ErrCoachingDisabled, 0)
		return
	}
	week, err := s.parseWeek(r.URL.Query().Get("week"), 0)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	metrics, err := s.coach.TeamMetrics(r.Context(), week)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, metrics)
}

type episodeRequest struct {
	ProducerEmail string `json:"producer_email"`
	Week          string `json:"week"`
}

// handleGenerateEpisode writes a coaching episode. The week defaults to the
// last completed one.
func (s *Server) handleGenerateEpisode(w http.ResponseWriter, r *http.Request) {
	if s.coach == nil {
		respondError(w, r, coaching.ErrCoachingDisabled, 0)
		return
	}
	var req episodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	if strings.TrimSpace(req.ProducerEmail) == "" {
		respondError(w, r, fmt.Errorf("%w: producer_email is required", errBadRequest), 0)
		return
	}
	week, err := s.parseWeek(req.Week, -1)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	ep, err := s.coach.GenerateEpisode(r.Context(), req.ProducerEmail, week)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSONStatus(w, http.StatusCreated, ep)
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	if s.coach == nil {
		respondError(w, r, coaching.ErrCoachingDisabled, 0)
		return
	}
	email := r.URL.Query().Get("producer_email")
	if strings.TrimSpace(email) == "" {
		respondError(w, r, fmt.Errorf("%w: producer_email is required", errBadRequest), 0)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, r, fmt.Errorf("%w: limit %q", errBadRequest, v), 0)
			return
		}
		limit = n
	}

	episodes, err := s.coach.Episodes(r.Context(), email, limit)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if episodes == nil {
		episodes = []coaching.Episode{}
	}
	writeJSON(w, episodes)
}

type teamEmailRequest struct {
	Week       string   `json:"week"`
	Recipients []string `json:"recipients"`
	Send       bool     `json:"send"`
}

// handleTeamEmail previews the weekly team email, or sends it when send is
// set. Recipients default to the configured distribution list.
func (s *Server) handleTeamEmail(w http.ResponseWriter, r *http.Request) {
	if s.coach == nil {
		respondError(w, r, coaching.ErrCoachingDisabled, 0)
		return
	}
	var req teamEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	week, err := s.parseWeek(req.Week, -1)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	if !req.Send {
		email, err := s.coach.GenerateTeamEmail(r.Context(), week)
		if err != nil {
			respondError(w, r, err, 0)
			return
		}
		writeJSON(w, email)
		return
	}

	recipients := req.Recipients
	if len(recipients) == 0 {
		recipients = s.cfg.Email.Recipients
	}
	if len(recipients) == 0 {
		respondError(w, r, fmt.Errorf("%w: no recipients", errBadRequest), 0)
		return
	}
	for _, addr := range recipients {
		if _, err := mail.ParseAddress(addr); err != nil {
			respondError(w, r, fmt.Errorf("%w: recipient %q", errBadRequest, addr), 0)
			return
		}
	}

	report, err := s.coach.SendTeamEmail(r.Context(), week, recipients)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, map[string]any{
		"week_start": report.WeekStart.Format(core.DateLayout),
		"subject":    report.Subject,
		"recipients": report.Recipients,
		"message_id": report.MessageID,
		"sent_at":    report.SentAt,
	})
}

// parseWeek resolves a week parameter to its Monday. An empty value picks
// the current week shifted by offset weeks.
func (s *Server) parseWeek(value string, offset int) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return coaching.WeekStart(s.now()).AddDate(0, 0, 7*offset), nil
	}
	t, ok := core.ParseEntryDate(strings.TrimSpace(value))
	if !ok {
		return time.Time{}, fmt.Errorf("%w: week %q is not a date", errBadRequest, value)
	}
	return coaching.WeekStart(t), nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// remoteIP returns the host part of RemoteAddr, which TrustedRealIP may
// already have reduced to a bare address.
func remoteIP(r *http.Request) (string, bool) {
	if r.RemoteAddr == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host, true
	}
	if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr, true
	}
	return "", false
}
