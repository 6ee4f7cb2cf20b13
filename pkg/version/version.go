package version

// Version identifies the canopy release. A var rather than a const so
// release builds can stamp it:
//
//	go build -ldflags "-X github.com/vanderheijden86/canopy/pkg/version.Version=v1.2.3"
var Version = "v0.1.0"
