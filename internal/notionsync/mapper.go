package notionsync

import (
	"time"

	"github.com/dvloznov/agritool/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the ledger database.
const (
	PropRecordID = "Record ID"
	PropUser     = "User"
	PropDate     = "Date"
	PropType     = "Type"
	PropCategory = "Category"
	PropAmount   = "Amount"
	PropNotes    = "Notes"
)

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// TransactionToProperties converts a ledger record of username into the
// properties of one Notion page.
func TransactionToProperties(username string, tx domain.Transaction) notionapi.Properties {
	date := notionapi.Date(time.Date(tx.Date.Year, tx.Date.Month, tx.Date.Day, 0, 0, 0, 0, time.UTC))

	props := notionapi.Properties{
		PropRecordID: notionapi.TitleProperty{Title: richText(tx.ID)},
		PropUser:     notionapi.SelectProperty{Select: notionapi.Option{Name: username}},
		PropDate:     notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}},
		PropType:     notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Type)}},
		PropCategory: notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Category}},
		PropAmount:   notionapi.NumberProperty{Number: tx.Amount.InexactFloat64()},
	}

	if tx.Notes != "" {
		props[PropNotes] = notionapi.RichTextProperty{RichText: richText(tx.Notes)}
	}

	return props
}

// recordID reads the Record ID title of a page. Returns empty string if not found.
func recordID(page notionapi.Page) string {
	prop, ok := page.Properties[PropRecordID]
	if !ok {
		return ""
	}

	var title []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		title = p.Title
	case notionapi.TitleProperty:
		title = p.Title
	}
	if len(title) == 0 {
		return ""
	}
	if title[0].PlainText != "" {
		return title[0].PlainText
	}
	if title[0].Text != nil {
		return title[0].Text.Content
	}
	return ""
}
