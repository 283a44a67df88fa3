package mathx

const (
	zerofunDelta = 1e-11 // default floor used by ZeroFun
	oneTolerance = 1e-5  // tolerance for IsOne
	nearzero     = 1e-8
)
