package version

import "fmt"

// Заполняются через ldflags при сборке:
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.3 \
//	  -X .../internal/version.Commit=abc1234 \
//	  -X .../internal/version.BuildDate=2026-01-15T10:00:00Z"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info — сведения о сборке сервиса.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Get возвращает сведения о текущей сборке.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	}
}

// String возвращает однострочное представление для логов и --version.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.BuildDate)
}
