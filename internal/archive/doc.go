// Package archive defines the on-disk format of an export and the code that
// reads and writes it.
//
// An export is a directory tree:
//
//	<root>/<folderName folderId>/<docName docId>/
//	    doc.json                             raw API document payload
//	    tables/<kind>/<tableName tableId>/
//	        table.json                       archived table (clean model)
//	        columns/<columnName columnId>.json   raw API column payloads
//	        rows.csv                         all cells, header row = column names
//	        rows.html                        standalone HTML rendering
//
// Directory names embed both the human-readable name and the id, so archives
// stay navigable while remaining unambiguous when names collide. Path-unsafe
// characters in names are replaced with underscores.
//
// table.json is the authoritative file for reimport; CSV and HTML are
// derived renderings for humans and spreadsheet tools.
package archive
