// Package errors provides coded, structured errors for the penguins
// dashboard.
//
// Every error code is registered with a category, a short message and an
// optional detail. Codes are grouped by range:
//   - E1xx: configuration
//   - E2xx: input validation
//   - E3xx: dataset loading and rendering
//   - E4xx: sessions and the live protocol
//
// # Usage
//
//	err := errors.New(errors.CodeInvalidBinCount).
//	    WithField("seaborn_bin_count").
//	    WithSuggestion("Pick a value between 1 and 50")
//
//	fmt.Println(err.Format())
//
// Errors wrap their cause, so errors.Is and errors.As from the standard
// library see through them. HTTPStatus maps a category to a response code.
package errors
