// Package reimport pushes a previously exported document archive back into
// a Coda document.
//
// Only real tables are reimported; views are projections of other tables
// and never carry their own data. Calculated columns are skipped for the
// same reason: the destination doc recomputes them from its own formulas.
// Destination tables are matched by name, not id, so an archive can be
// reimported into a fresh copy of a doc whose table ids differ.
package reimport
