// Package render draws the dashboard outputs.
//
// Charts are rendered to inline SVG with go-chart: histograms as filled
// step outlines over equal-width bins, and the scatterplot as one dot
// series per species. Tables and the paged data grid are rendered with
// html/template. An empty view renders a "no data" placeholder rather
// than an error.
//
// Page renders the full dashboard document and Static serves the client
// script that keeps it live.
package render
