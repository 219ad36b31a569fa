package intervention

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ledax/geoetl/internal/geocoding"
	"github.com/ledax/geoetl/internal/geofence"
	"github.com/ledax/geoetl/internal/models"
)

// Terminal is the interactive Handler: it prints the record and the best
// automatic candidate to out and reads operator decisions from in. Manual
// queries re-enter the free-text provider and are re-validated against the
// geofence before the operator confirms them.
type Terminal struct {
	in     *bufio.Reader
	out    io.Writer
	lookup geocoding.FreeTextProvider
	fence  *geofence.Validator
	log    *slog.Logger
}

// NewTerminal creates a terminal handler reading from in and writing to out.
func NewTerminal(
	in io.Reader,
	out io.Writer,
	lookup geocoding.FreeTextProvider,
	fence *geofence.Validator,
	log *slog.Logger,
) *Terminal {
	return &Terminal{
		in:     bufio.NewReader(in),
		out:    out,
		lookup: lookup,
		fence:  fence,
		log:    log,
	}
}

// Resolve blocks on operator input until the record is accepted, manually
// resolved, or skipped. An input read failure (closed stdin) surfaces as an
// error so the caller can record the record as skipped.
func (t *Terminal) Resolve(ctx context.Context, req Request) (models.ResolutionResult, error) {
	t.printSummary(req)

	for {
		fmt.Fprint(t.out, "> Option ([a]ccept / [m]anual / [g]oogle maps link / [s]kip): ")

		choice, err := t.readLine()
		if err != nil {
			return models.UnresolvedResult(models.ReasonSkippedByOperator),
				fmt.Errorf("failed to read operator input: %w", err)
		}

		switch strings.ToLower(choice) {
		case "a":
			if req.Best == nil {
				fmt.Fprintln(t.out, "No automatic candidate to accept.")
				continue
			}
			t.log.InfoContext(ctx, "Operator accepted out-of-fence candidate", "label", req.Record.Label)
			provenance := fmt.Sprintf("Manually approved (geofence warning): %s", t.describe(*req.Best))
			return models.ResolvedResult(req.Best.Coordinates, provenance), nil

		case "s":
			t.log.InfoContext(ctx, "Operator skipped record", "label", req.Record.Label)
			return models.UnresolvedResult(models.ReasonSkippedByOperator), nil

		case "g":
			fmt.Fprintf(t.out, "https://www.google.com/maps/search/%s\n",
				url.QueryEscape(req.Record.Label+" "+req.Record.Address))

		case "m":
			result, done, errManual := t.manualQuery(ctx)
			if errManual != nil {
				return models.UnresolvedResult(models.ReasonSkippedByOperator), errManual
			}
			if done {
				return result, nil
			}

		default:
			fmt.Fprintln(t.out, "Unknown option.")
		}
	}
}

// manualQuery asks the operator for a search string, runs it through the
// free-text provider and asks for confirmation. done is false when the
// operator rejected the hit or nothing was found, returning to the menu.
func (t *Terminal) manualQuery(ctx context.Context) (models.ResolutionResult, bool, error) {
	fmt.Fprintln(t.out, "Hint: enter just the correct postal code, or 'Street, City'.")
	fmt.Fprint(t.out, "> Search: ")

	query, err := t.readLine()
	if err != nil {
		return models.ResolutionResult{}, false, fmt.Errorf("failed to read manual query: %w", err)
	}
	if query == "" {
		return models.ResolutionResult{}, false, nil
	}

	result := t.lookup.Resolve(ctx, geocoding.Query{Text: query})
	if result.Status != geocoding.StatusFound {
		fmt.Fprintln(t.out, "Nothing found.")
		return models.ResolutionResult{}, false, nil
	}

	candidate := result.Candidate
	fmt.Fprintf(t.out, "Found: %s\n", t.describe(candidate))
	if dist, anchor, ok := t.fence.StaticDistanceKm(candidate.Coordinates); ok {
		fmt.Fprintf(t.out, "Distance from %s: %.1f km\n", anchor.Label, dist)
		if dist > anchor.ToleranceKm {
			fmt.Fprintln(t.out, "WARNING: still far outside the expected area!")
		}
	}

	fmt.Fprint(t.out, "> Use this result? (y/n): ")
	confirm, err := t.readLine()
	if err != nil {
		return models.ResolutionResult{}, false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	if strings.ToLower(confirm) != "y" {
		return models.ResolutionResult{}, false, nil
	}

	t.log.InfoContext(ctx, "Operator resolved record manually", "query", query)
	provenance := fmt.Sprintf("Manual: %s", t.describe(candidate))
	return models.ResolvedResult(candidate.Coordinates, provenance), true, nil
}

func (t *Terminal) printSummary(req Request) {
	divider := strings.Repeat("!", 60)

	fmt.Fprintf(t.out, "\n%s\n", divider)
	fmt.Fprintf(t.out, "INTERVENTION NEEDED: %s\n", reasonText(req.Reason))
	fmt.Fprintln(t.out, divider)
	fmt.Fprintf(t.out, "Location:    %s\n", req.Record.Label)
	fmt.Fprintf(t.out, "Address:     %s\n", req.Record.Address)
	if req.Record.PostalCode != "" {
		fmt.Fprintf(t.out, "Postal code: %s\n", req.Record.PostalCode)
	} else {
		fmt.Fprintln(t.out, "Postal code: N/A")
	}
	fmt.Fprintln(t.out, strings.Repeat("-", 60))

	if req.Best != nil {
		fmt.Fprintf(t.out, "Suggested:   %s\n", t.describe(*req.Best))
		fmt.Fprintf(t.out, "Coords:      %.5f, %.5f\n",
			req.Best.Coordinates.Latitude, req.Best.Coordinates.Longitude)
		if dist, anchor, ok := t.fence.StaticDistanceKm(req.Best.Coordinates); ok {
			fmt.Fprintf(t.out, "Distance from %s: %.1f km\n", anchor.Label, dist)
			if dist > anchor.ToleranceKm {
				fmt.Fprintln(t.out, "WARNING: candidate is far outside the expected area!")
			}
		}
	} else {
		fmt.Fprintln(t.out, "No reliable automatic candidate found.")
	}

	fmt.Fprintln(t.out, strings.Repeat("-", 60))
}

func (t *Terminal) describe(candidate models.GeoCandidate) string {
	if candidate.DisplayName != "" {
		return candidate.DisplayName
	}
	return candidate.Provenance
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func reasonText(reason models.UnresolvedReason) string {
	switch reason {
	case models.ReasonOutOfGeofence:
		return "candidate outside geofence"
	case models.ReasonNotFound:
		return "no candidate found"
	case models.ReasonSkippedByOperator:
		return "skipped"
	}

	return string(reason)
}
