// Package sanitizer normalizes request input before validation and storage.
//
// All functions are idempotent: applying them twice gives the same result as
// applying them once. Invalid input is passed through (trimmed) rather than
// rejected; rejecting is the validator's job.
//
// Normalization includes:
//   - Strings: collapse whitespace, trim leading/trailing spaces
//   - Emails: trim, lowercase
//   - Slot dates: trim, re-pad to YYYY-MM-DD when the input parses
//   - Slot time labels: rewrite "9am", "09:00 am et" to the canonical "9:00 AM ET"
package sanitizer
