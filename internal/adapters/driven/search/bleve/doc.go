// Package bleve implements the search index port with one Bleve index
// per collection, stored side by side under a base directory.
//
// The text field is analyzed for full-text relevance ranking; the
// canonical author field uses the keyword analyzer so author lookups
// are exact matches, and the canonical timestamp is a datetime field
// for range filtering and sorting.
package bleve
