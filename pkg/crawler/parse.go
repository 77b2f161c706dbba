package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/models"
	"tcgsync/pkg/session"
	"tcgsync/pkg/tcgplayer"
)

// listingPage is one parsed page of the order listing
type listingPage struct {
	rows      int // every table row, with or without an order link
	summaries []models.OrderSummary
	skipped   int // rows without an order id
	pager     bool // the next-page control is on the page at all
	hasNext   bool // the control is present and enabled
}

// parseListing extracts order summaries from a listing page body, decoding
// it from whatever charset the portal declared.
func parseListing(page *session.Page) (*listingPage, error) {
	reader, err := charset.NewReader(bytes.NewReader(page.Body), page.ContentType)
	if err != nil {
		return nil, errs.NewParseError("could not decode listing page", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, errs.NewParseError("invalid listing HTML", err)
	}

	result := &listingPage{}
	var parseErr error

	doc.Find(tcgplayer.RowSelector).EachWithBreak(func(i int, row *goquery.Selection) bool {
		result.rows++

		summary, ok, err := parseRow(row)
		if err != nil {
			parseErr = errs.NewParseError(fmt.Sprintf("listing row %d", i+1), err)
			return false
		}
		if !ok {
			result.skipped++
			return true
		}
		result.summaries = append(result.summaries, summary)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	result.pager, result.hasNext = nextPage(doc)
	return result, nil
}

// parseRow returns ok=false for rows that carry no order link at all
func parseRow(row *goquery.Selection) (models.OrderSummary, bool, error) {
	link := row.Find(tcgplayer.OrderLinkSelector).First()
	text := strings.TrimSpace(link.Text())
	href := link.AttrOr("href", "")
	if link.Length() == 0 || (text == "" && href == "") {
		return models.OrderSummary{}, false, nil
	}

	id, ok := tcgplayer.ExtractOrderID(text)
	if !ok {
		id, ok = tcgplayer.ExtractOrderID(href)
	}
	if !ok {
		return models.OrderSummary{}, false, fmt.Errorf("unrecognized order number %q", text)
	}

	dateText := strings.TrimSpace(row.Find(tcgplayer.OrderDateSelector).First().Text())
	fields := strings.Fields(dateText)
	if len(fields) == 0 {
		return models.OrderSummary{}, false, fmt.Errorf("order %s has no date", id)
	}
	date, err := models.ParseDate(fields[0])
	if err != nil {
		return models.OrderSummary{}, false, fmt.Errorf("order %s: %w", id, err)
	}

	return models.OrderSummary{
		OrderID:   id,
		OrderDate: date,
		OrderType: rowType(row),
	}, true, nil
}

func rowType(row *goquery.Selection) models.OrderType {
	cell := strings.ToLower(strings.TrimSpace(row.Find(tcgplayer.TypeSelector).First().Text()))
	switch {
	case strings.Contains(cell, "direct"):
		return models.OrderTypeDirect
	case strings.Contains(cell, "normal"):
		return models.OrderTypeNormal
	}
	if row.Find(tcgplayer.DirectIconSelector).Length() > 0 {
		return models.OrderTypeDirect
	}
	return models.OrderTypeNormal
}

// nextPage reports whether the page has a next-page control and whether it
// is enabled.
func nextPage(doc *goquery.Document) (present, enabled bool) {
	next := doc.Find(tcgplayer.NextPageSelector).First()
	if next.Length() == 0 {
		return false, false
	}
	if _, disabled := next.Attr("disabled"); disabled {
		return true, false
	}
	if strings.EqualFold(next.AttrOr("aria-disabled", ""), "true") {
		return true, false
	}
	for _, class := range strings.Fields(next.AttrOr("class", "")) {
		if strings.EqualFold(class, "disabled") || strings.HasSuffix(strings.ToLower(class), "--disabled") {
			return true, false
		}
	}
	return true, true
}
