package checks

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

// TableChecker checks data tables for headers, scope and captions, and
// layout tables for data-table markup.
type TableChecker struct{}

func (TableChecker) Name() string { return "tables" }

func (TableChecker) Check(doc *document.Document) []models.Issue {
	var issues []models.Issue

	visible(doc.Find("table")).Each(func(_ int, table *goquery.Selection) {
		own := func(sel string) *goquery.Selection {
			return table.Find(sel).FilterFunction(func(_ int, s *goquery.Selection) bool {
				return s.Closest("table").IsSelection(table)
			})
		}

		switch table.AttrOr("role", "") {
		case "presentation", "none":
			if own("th").Length() > 0 || own("caption").Length() > 0 {
				issues = append(issues, issueAt(table, "layout_table_with_headers", models.SeverityModerate, "1.3.1", models.CategoryTables,
					"Layout table contains data-table markup.",
					"Remove <th> and <caption> from layout tables, or drop the presentation role."))
			}
			return
		}

		headers := own("th")
		dataRows := own("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.ChildrenFiltered("td").Length() > 0
		})

		if headers.Length() == 0 {
			if dataRows.Length() >= 2 {
				issues = append(issues, issueAt(table, "table_missing_headers", models.SeveritySerious, "1.3.1", models.CategoryTables,
					"Data table has no header cells.",
					"Mark header cells with <th> so cells can be related to their headers."))
			}
			return
		}

		if own("caption").Length() == 0 {
			if _, ok := document.NonEmptyAttr(table, "aria-label"); !ok {
				if _, ok := document.NonEmptyAttr(table, "aria-labelledby"); !ok {
					issues = append(issues, issueAt(table, "table_missing_caption", models.SeverityMinor, "1.3.1", models.CategoryTables,
						"Data table has no caption.",
						"Add a <caption> that summarizes the table."))
				}
			}
		}

		headers.Each(func(_ int, th *goquery.Selection) {
			if doc.AccessibleName(th) == "" {
				issues = append(issues, issueAt(th, "empty_table_header", models.SeverityModerate, "1.3.1", models.CategoryTables,
					"Table header cell is empty.",
					"Give the header cell text, or use <td> if it is not a header."))
			}
		})

		if hasRowHeaders(headers) && hasColumnHeaders(headers) {
			headers.Each(func(_ int, th *goquery.Selection) {
				if _, ok := document.NonEmptyAttr(th, "scope"); ok {
					return
				}
				issues = append(issues, issueAt(th, "th_missing_scope", models.SeverityModerate, "1.3.1", models.CategoryTables,
					"Header cell in a table with row and column headers has no scope.",
					`Add scope="col" or scope="row" to each header cell.`))
			})
		}
	})

	return issues
}

// hasColumnHeaders reports whether any th sits in a row made only of th.
func hasColumnHeaders(headers *goquery.Selection) bool {
	found := false
	headers.Each(func(_ int, th *goquery.Selection) {
		if th.Parent().ChildrenFiltered("td").Length() == 0 {
			found = true
		}
	})
	return found
}

// hasRowHeaders reports whether any th shares its row with data cells.
func hasRowHeaders(headers *goquery.Selection) bool {
	found := false
	headers.Each(func(_ int, th *goquery.Selection) {
		if th.Parent().ChildrenFiltered("td").Length() > 0 {
			found = true
		}
	})
	return found
}
