// Package internaldefs holds the shared metric catalog used by the export
// packages: one definition per engine counter and histogram, plus the fixed
// histogram bucket bounds. It exists so the OTel and Prometheus exporters
// agree on names without importing each other.
package internaldefs
