package wheelwright

// Generator identity recorded in the WHEEL file of every produced wheel.
const (
	generatorName    = "wheelwright"
	generatorVersion = "0.3.0"
)
