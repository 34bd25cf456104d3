// Package export writes the TLP curve of a record to CSV, Parquet or XLSX.
package export
