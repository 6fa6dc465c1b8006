package server

import (
	"context"
	"database/sql"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"thriftscan/valuator/internal/models"
)

// CommunityLister lists watched communities for export.
type CommunityLister interface {
	AllCommunities(ctx context.Context) ([]models.Community, error)
}

// healthCheckHandler responds 200 OK while the database answers a ping.
func healthCheckHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)
		log.Debug().Msg("Health check request received")

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				log.Error().Err(err).Msg("Health check database ping failed")
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("Error writing health check response")
		}
	}
}

// exportCommunitiesHandler exports all watched communities as a CSV file
// in the format accepted by the import command.
func exportCommunitiesHandler(lister CommunityLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)
		log.Debug().Msg("Export communities request received")

		communities, err := lister.AllCommunities(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to query communities")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=communities.csv")

		csvWriter := csv.NewWriter(w)
		header := []string{"name", "comments", "status", "source_mode", "failures_count", "last_retrieved_at"}
		if err := csvWriter.Write(header); err != nil {
			log.Error().Err(err).Msg("Failed to write CSV header")
			return
		}

		for _, c := range communities {
			record := []string{
				c.Name,
				nullStringValue(c.Comments),
				c.Status,
				c.SourceMode,
				strconv.Itoa(c.FailuresCount),
				nullTimeValue(c.LastRetrievedAt),
			}
			if err := csvWriter.Write(record); err != nil {
				log.Error().Err(err).Msg("Failed to write CSV record")
				return
			}
		}

		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Error().Err(err).Msg("Error flushing CSV data")
			return
		}

		log.Info().Int("community_count", len(communities)).Msg("Exported communities as CSV")
	}
}

// nullStringValue returns the string value of a sql.NullString or an empty string if not valid
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullTimeValue(nt sql.NullTime) string {
	if nt.Valid {
		return nt.Time.UTC().Format(time.RFC3339)
	}
	return ""
}
