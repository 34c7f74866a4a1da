// Package layout derives every page, space and word quantity of the flat plan
// from an article's fields.
//
// Functions here are pure and total. They never return errors: malformed ratios
// degrade to full size, negative word counts to zero, and page counts below one
// to one. Running Recompute or Plan twice on the same input yields the same output.
//
// Page numbers inside an article (Visual.Page, ArticlePage.PageNumber) are 1-based
// and relative to the article's StartPage.
package layout
