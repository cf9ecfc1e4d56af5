package singreg

type TimingMode int

const (
	// TimingDisable will disable timing for all registries.
	TimingDisable TimingMode = iota

	// TimingCreations will start a timing context for each factory that is
	// invoked. This is useful to see where the time of a lazy creation chain
	// is being spent, including factories entered recursively to resolve
	// circular references.
	TimingCreations
)

var EnableTiming = TimingDisable
