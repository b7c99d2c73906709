// Package detection imports detector output into an annotation campaign.
//
// Detector runs arrive as CSV files with one box per row. Rows are matched
// to campaign files by filename and to campaign tags by Unicode NFC label;
// rows that match neither are skipped and reported instead of failing the
// whole import. Imported results are authored by a detector configuration
// rather than an annotator, which is what Check campaigns review.
package detection
