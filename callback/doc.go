// Package callback weaves handler calls into methods of the managed VM and
// hands the handler the target's live local variables.
//
// An Injector resolves one local per extra handler parameter (by ordinal,
// slot index, name or unique type), validates the handler descriptor and
// inserts the call before an injection node. Handler parameters annotated
// with ModifyAnnotation are written back: the handler copies their final
// values into a synthetic carrier class before returning, and the target
// reads them back into the original slots.
//
// Carrier classes are allocated and generated by a LocalsGenerator, which
// pools them by CaptureKey.
package callback
