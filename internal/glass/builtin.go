package glass

func sm(b1, b2, b3, c1, c2, c3 float64) *Sellmeier {
	return &Sellmeier{B1: b1, B2: b2, B3: b3, C1: c1, C2: c2, C3: c3}
}

// Misc holds non-vendor materials. It is searched first.
var Misc = NewSource("misc", []Material{
	{Name: "FUSED SILICA", Nd: 1.458464, Vd: 67.82, Sellmeier: sm(0.6961663, 0.4079426, 0.8974794, 0.00467914826, 0.0135120631, 97.9340025)},
	{Name: "SILICA", Nd: 1.458464, Vd: 67.82, Sellmeier: sm(0.6961663, 0.4079426, 0.8974794, 0.00467914826, 0.0135120631, 97.9340025)},
	{Name: "CAF2", Nd: 1.433849, Vd: 94.99, Sellmeier: sm(0.5675888, 0.4710914, 3.8484723, 0.00252643, 0.0100783, 1200.5559)},
	{Name: "WATER", Nd: 1.333, Vd: 55.74},
})

// Ohara holds a subset of the Ohara optical glass catalog.
var Ohara = NewSource("ohara", []Material{
	{Name: "S-BSL7", Nd: 1.51633, Vd: 64.14, Sellmeier: sm(1.15150190, 0.118583612, 1.26301359, 0.0105984130, -0.0118225190, 129.617662)},
	{Name: "S-TIH6", Nd: 1.80518, Vd: 25.42, Sellmeier: sm(1.77227611, 0.345691250, 2.40788501, 0.0131182633, 0.0614479619, 200.753254)},
})

// Schott holds a subset of the Schott optical glass catalog.
var Schott = NewSource("schott", []Material{
	{Name: "N-BK7", Nd: 1.5168, Vd: 64.17, Sellmeier: sm(1.03961212, 0.231792344, 1.01046945, 0.00600069867, 0.0200179144, 103.560653)},
	{Name: "BK7", Nd: 1.5168, Vd: 64.17, Sellmeier: sm(1.03961212, 0.231792344, 1.01046945, 0.00600069867, 0.0200179144, 103.560653)},
	{Name: "N-SF5", Nd: 1.67271, Vd: 32.25, Sellmeier: sm(1.52481889, 0.187085527, 1.42729015, 0.011254756, 0.0588995392, 129.141675)},
	{Name: "F2", Nd: 1.62004, Vd: 36.37, Sellmeier: sm(1.34533359, 0.209073176, 0.937357162, 0.00997743871, 0.0470450767, 111.886764)},
	{Name: "N-F2", Nd: 1.62005, Vd: 36.43, Sellmeier: sm(1.39757037, 0.159201403, 1.2686543, 0.00995906143, 0.0546931752, 119.248346)},
	{Name: "N-SF11", Nd: 1.78472, Vd: 25.68, Sellmeier: sm(1.73759695, 0.313747346, 1.89878101, 0.013188707, 0.0623068142, 155.23629)},
	{Name: "N-BAK4", Nd: 1.56883, Vd: 55.98, Sellmeier: sm(1.28834642, 0.132817724, 0.945395373, 0.00779980626, 0.0315631177, 105.965875)},
	{Name: "N-SK16", Nd: 1.62041, Vd: 60.32, Sellmeier: sm(1.34317774, 0.241144399, 0.994317969, 0.00704687339, 0.0229005, 92.7508526)},
})
