// Package dashboard holds the input state of a viewer and the filtered
// view derived from it.
//
// FilterRows is the filtering rule: keep rows of the selected species and,
// when an attribute is selected, drop rows missing that attribute. Session
// wires the rule into a reactive graph so that each input change redraws
// exactly the outputs that read it.
//
// Input values enter through ParseChange, which enforces every field's
// domain. A Session never holds an out-of-domain value.
package dashboard
