package crd

// Defaults for a run; most can be overridden from the config file or CRD_* env.
const (
	NumCategories             = 3
	OutputName                = "all_hits.csv"
	OutputDir                 = "."
	ScoringVolumeName         = "Scintillator"
	DetectorVolumeName        = "PhotonDetector"
	SampleVolumeName          = "AluminumShell"
	CSVPrecision              = 6 // significant digits
	Events                    = 100
	StepsPerEvent             = 200
	PhotonFraction            = 0.3
	MeanDepositEV             = 1500.0 // mean energy deposit per charged step, eV
	PhotonEnergyEV            = 2.818  // peak of the scintillation spectrum, eV
	TimeSpanNS                = 50.0
	ProgressSteps             = 10 // progress log lines per run
	TimestampLayout           = "20060102_150405"
	NotAvailable              = "n/a"
	CSVContentType            = "text/csv"
	seedMix            uint64 = 0x9e3779b97f4a7c15
)
