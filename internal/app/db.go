package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/riskibarqy/softball-stats/internal/platform/logging"
)

const dbPingTimeout = 5 * time.Second

func openDB(ctx context.Context, dbURL string, logger *logging.Logger) (*sqlx.DB, error) {
	db, err := otelsqlx.Open("postgres", dbURL,
		otelsql.WithDBName(dbNameFromURL(dbURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Archive writes are small and bursty.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", redactDBURL(dbURL), err)
	}

	logger.Info("postgres connected", "db", redactDBURL(dbURL))
	return db, nil
}

const maxTracedQueryLength = 512

var (
	queryWhitespaceRegex = regexp.MustCompile(`\s+`)
	// A run of two or more placeholder tuples, as produced by multi-row inserts.
	valuesTuplesRegex = regexp.MustCompile(`\(\$\d+(?:, \$\d+)*\)(?:, \(\$\d+(?:, \$\d+)*\))+`)
)

// formatDBQueryForTrace flattens whitespace and folds multi-row VALUES lists
// into their first tuple plus a row count, so archive batches stay readable
// in span attributes.
func formatDBQueryForTrace(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	normalized := queryWhitespaceRegex.ReplaceAllString(query, " ")
	normalized = valuesTuplesRegex.ReplaceAllStringFunc(normalized, func(tuples string) string {
		rows := strings.Count(tuples, "(")
		first := tuples[:strings.Index(tuples, ")")+1]
		return fmt.Sprintf("%s /* %d rows */", first, rows)
	})
	if len(normalized) <= maxTracedQueryLength {
		return normalized
	}

	return normalized[:maxTracedQueryLength] + "..."
}
