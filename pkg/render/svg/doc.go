// Package svg draws family tree layouts as standalone SVG documents.
//
// Each person becomes a rounded card centred on its layout position.
// Parent/child links are drawn as elbows from the bottom of the parent card
// to the top of the child card; partnerships are short horizontal bars
// joining the two cards. Cards are coloured by status and can be overridden
// with [WithStatusColors].
//
//	doc := svg.Render(l, svg.WithTitle("The Smiths"), svg.WithBirthDates())
package svg
