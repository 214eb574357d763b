// Package glass resolves optical material names to refractive indices.
//
// A Catalog searches its sources in a fixed order (miscellaneous, Ohara,
// Schott for the built-in set) and evaluates the Sellmeier dispersion
// formula when coefficients are present, falling back to the documented nd
// otherwise. Unknown materials resolve to n = 1 with ErrUnknownMaterial and
// a single warning per material for the lifetime of the Catalog.
//
// Wavelengths are in micrometres throughout.
package glass
