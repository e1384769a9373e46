package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/conciergelab/concierge-api/internal/types"
)

// dateLayouts covers the formats seen in loyalty exports.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseRecords reads loyalty booking rows from CSV. The header row is
// required; a leading unnamed index column (as written by dataframe exports)
// is ignored.
func ParseRecords(r io.Reader) ([]types.BookingRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}

	required := []string{
		"guest_name", "goal", "loyalty_tier", "preferred_room",
		"booking_date", "base_price", "loyalty_discount", "final_price",
	}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", name)
		}
	}

	var records []types.BookingRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line, err)
		}

		rec, err := parseRow(row, col)
		if err != nil {
			return nil, fmt.Errorf("invalid CSV row %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadFile parses a loyalty CSV from disk.
func LoadFile(path string) ([]types.BookingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bookings file: %w", err)
	}
	defer f.Close()
	return ParseRecords(f)
}

func parseRow(row []string, col map[string]int) (types.BookingRecord, error) {
	get := func(name string) string {
		return strings.TrimSpace(row[col[name]])
	}

	goal, err := types.ParseTravelGoal(get("goal"))
	if err != nil {
		return types.BookingRecord{}, err
	}
	tier, err := types.ParseLoyaltyTier(get("loyalty_tier"))
	if err != nil {
		return types.BookingRecord{}, err
	}
	room, err := types.ParseRoomType(get("preferred_room"))
	if err != nil {
		return types.BookingRecord{}, err
	}

	date, err := parseDate(get("booking_date"))
	if err != nil {
		return types.BookingRecord{}, err
	}

	basePrice, err := strconv.ParseFloat(get("base_price"), 64)
	if err != nil {
		return types.BookingRecord{}, fmt.Errorf("bad base_price: %w", err)
	}
	discount, err := strconv.ParseFloat(get("loyalty_discount"), 64)
	if err != nil {
		return types.BookingRecord{}, fmt.Errorf("bad loyalty_discount: %w", err)
	}
	finalPrice, err := strconv.ParseFloat(get("final_price"), 64)
	if err != nil {
		return types.BookingRecord{}, fmt.Errorf("bad final_price: %w", err)
	}

	return types.BookingRecord{
		GuestName:       get("guest_name"),
		Goal:            goal,
		LoyaltyTier:     tier,
		PreferredRoom:   room,
		BookingDate:     date,
		BasePrice:       basePrice,
		LoyaltyDiscount: discount,
		FinalPrice:      finalPrice,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized booking_date %q", s)
}
