package installer

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"hudo/internal/envapply"
	"hudo/internal/fetch"
	"hudo/internal/version"
)

// Static defaults used when remote discovery fails and nothing is locked.
const (
	GitVersion    = "2.47.1.2"
	GHVersion     = "2.87.3"
	GoVersion     = "1.24.0"
	FnmVersion    = "1.38.1"
	BunVersion    = "1.1.42"
	UVVersion     = "0.5.11"
	JDKMajor      = "21"
	MavenVersion  = "3.9.9"
	GradleVersion = "8.12.1"
	MySQLVersion  = "8.4.4"
	PGVersion     = "17.8"
	VSCodeVersion = "1.96.2"
	RustVersion   = "1.84.0"
)

const (
	PyCharmVersion = "2024.3.5"

	// MinicondaVersion is an installer tag: Python series plus conda release.
	MinicondaVersion = "py312_24.11.1-0"

	// MingwVersion is a winlibs release tag.
	MingwVersion = "14.2.0posix-19.1.7-12.0.0-ucrt-r2"
)

// PGService is the Windows service name registered for PostgreSQL.
const PGService = "PostgreSQL"

func x64(arch string) string {
	switch arch {
	case "amd64":
		return "x64"
	case "arm64":
		return "aarch64"
	default:
		return arch
	}
}

// winlibsAsset names the UCRT zip inside a winlibs release such as
// "14.2.0posix-19.1.7-12.0.0-ucrt-r2".
func winlibsAsset(tag string) (string, error) {
	gcc, rest, ok := strings.Cut(tag, "posix-")
	parts := strings.Split(rest, "-")
	if !ok || gcc == "" || len(parts) != 4 {
		return "", fmt.Errorf("mingw: malformed winlibs release %q", tag)
	}
	llvm, mingw, runtime, rev := parts[0], parts[1], parts[2], parts[3]
	return fmt.Sprintf("winlibs-x86_64-posix-seh-gcc-%s-llvm-%s-mingw-w64%s-%s-%s.zip", gcc, llvm, runtime, mingw, rev), nil
}

func newDefinitions() Catalog {
	defs := []Installer{
		&gitInstaller{recipe: &recipe{
			desc:   Descriptor{ID: "git", DisplayName: "Git", Description: "Git for Windows (MinGit)", Category: CategoryTool},
			target: version.Target{ID: "git", Source: version.GitHubSource{Repo: "git-for-windows/git", Parse: version.ParseGitTag}, Fallback: GitVersion},
			official: func(Platform) string {
				return "https://github.com/git-for-windows/git/releases/download"
			},
			locate: func(v string, p Platform) (artifact, error) {
				if p.OS != "windows" {
					return artifact{}, unsupported("git", p)
				}
				bits := "64-bit"
				if p.Arch == "arm64" {
					bits = "arm64"
				}
				return artifact{Suffix: fmt.Sprintf("%s/MinGit-%s-%s.zip", version.GitTag(v), v, bits)}, nil
			},
			binary:    "cmd/git",
			configure: configureGit,
		}},
		&ghInstaller{recipe: &recipe{
			desc:   Descriptor{ID: "gh", DisplayName: "GitHub CLI", Description: "GitHub command line client", Category: CategoryTool},
			target: version.Target{ID: "gh", Source: version.GitHubSource{Repo: "cli/cli"}, Fallback: GHVersion},
			official: func(Platform) string {
				return "https://github.com/cli/cli/releases/download"
			},
			locate: func(v string, p Platform) (artifact, error) {
				osName, ext := p.OS, archiveExt(p)
				if p.OS == "darwin" {
					osName, ext = "macOS", "zip"
				}
				return artifact{Suffix: fmt.Sprintf("v%s/gh_%s_%s_%s.%s", v, v, osName, p.Arch, ext)}, nil
			},
			binary: "bin/gh",
			strip:  true,
		}},
		&recipe{
			desc:   Descriptor{ID: "go", DisplayName: "Go", Description: "Go toolchain", Category: CategoryLanguage},
			target: version.Target{ID: "go", Source: version.GoSource{}, Fallback: GoVersion},
			official: func(Platform) string {
				return "https://go.dev/dl"
			},
			locate: func(v string, p Platform) (artifact, error) {
				return artifact{Suffix: fmt.Sprintf("go%s.%s-%s.%s", v, p.OS, p.Arch, archiveExt(p))}, nil
			},
			binary: "bin/go",
			strip:  true,
			env: func(o Outcome) []envapply.Action {
				return []envapply.Action{
					envapply.SetVariable("GOROOT", o.Path),
					envapply.PrependPath(filepath.Join(o.Path, "bin")),
				}
			},
		},
		&recipe{
			desc:   Descriptor{ID: "nodejs", DisplayName: "Node.js", Description: "Node.js LTS managed by fnm", Category: CategoryLanguage},
			target: version.Target{ID: "nodejs", Source: version.GitHubSource{Repo: "Schniz/fnm"}, Fallback: FnmVersion},
			official: func(Platform) string {
				return "https://github.com/Schniz/fnm/releases/download"
			},
			locate: func(v string, p Platform) (artifact, error) {
				var name string
				switch {
				case p.OS == "windows":
					name = "fnm-windows.zip"
				case p.OS == "darwin":
					name = "fnm-macos.zip"
				case p.OS == "linux" && p.Arch == "arm64":
					name = "fnm-arm64.zip"
				case p.OS == "linux":
					name = "fnm-linux.zip"
				default:
					return artifact{}, unsupported("nodejs", p)
				}
				return artifact{Suffix: fmt.Sprintf("v%s/%s", v, name), FileName: fmt.Sprintf("fnm-%s-%s", v, name)}, nil
			},
			binary:    "fnm",
			env:       nodeEnv,
			configure: configureNode,
		},
		&recipe{
			desc:   Descriptor{ID: "bun", DisplayName: "Bun", Description: "Bun JavaScript runtime", Category: CategoryLanguage},
			target: version.Target{ID: "bun", Source: version.GitHubSource{Repo: "oven-sh/bun", Parse: func(tag string) string { return strings.TrimPrefix(tag, "bun-v") }}, Fallback: BunVersion},
			official: func(Platform) string {
				return "https://github.com/oven-sh/bun/releases/download"
			},
			locate: func(v string, p Platform) (artifact, error) {
				name := fmt.Sprintf("bun-%s-%s.zip", p.OS, x64(p.Arch))
				return artifact{Suffix: fmt.Sprintf("bun-v%s/%s", v, name), FileName: fmt.Sprintf("bun-%s-%s-%s.zip", v, p.OS, x64(p.Arch))}, nil
			},
			binary: "bun",
			strip:  true,
		},
		&recipe{
			desc:   Descriptor{ID: "uv", DisplayName: "uv", Description: "Python package and project manager", Category: CategoryTool},
			target: version.Target{ID: "uv", Source: version.GitHubSource{Repo: "astral-sh/uv"}, Fallback: UVVersion},
			official: func(Platform) string {
				return "https://github.com/astral-sh/uv/releases/download"
			},
			locate: func(v string, p Platform) (artifact, error) {
				arch := map[string]string{"amd64": "x86_64", "arm64": "aarch64"}[p.Arch]
				vendor := map[string]string{"windows": "pc-windows-msvc", "linux": "unknown-linux-gnu", "darwin": "apple-darwin"}[p.OS]
				if arch == "" || vendor == "" {
					return artifact{}, unsupported("uv", p)
				}
				name := fmt.Sprintf("uv-%s-%s.%s", arch, vendor, archiveExt(p))
				return artifact{Suffix: fmt.Sprintf("%s/%s", v, name), FileName: fmt.Sprintf("uv-%s-%s-%s.%s", v, arch, vendor, archiveExt(p))}, nil
			},
			binary: "uv",
			strip:  true,
			env: func(o Outcome) []envapply.Action {
				return []envapply.Action{
					envapply.PrependPath(o.Path),
					envapply.SetVariable("UV_PYTHON_INSTALL_DIR", filepath.Join(o.Path, "python")),
					envapply.SetVariable("UV_TOOL_DIR", filepath.Join(o.Path, "tools")),
					envapply.SetVariable("UV_CACHE_DIR", filepath.Join(o.Path, "cache")),
				}
			},
		},
		&recipe{
			desc:   Descriptor{ID: "jdk", DisplayName: "JDK", Description: "Eclipse Temurin JDK", Category: CategoryLanguage},
			target: version.Target{ID: "jdk", Fallback: JDKMajor},
			official: func(Platform) string {
				return "https://api.adoptium.net/v3/binary/latest"
			},
			locate: func(v string, p Platform) (artifact, error) {
				osName := map[string]string{"windows": "windows", "linux": "linux", "darwin": "mac"}[p.OS]
				if osName == "" {
					return artifact{}, unsupported("jdk", p)
				}
				ext := archiveExt(p)
				return artifact{
					Suffix:   fmt.Sprintf("%s/ga/%s/%s/jdk/hotspot/normal/eclipse", v, osName, x64(p.Arch)),
					FileName: fmt.Sprintf("temurin-jdk%s-%s-%s.%s", v, osName, x64(p.Arch), ext),
					Format:   fetch.FormatFromName("." + ext),
				}, nil
			},
			binary:      "bin/java",
			versionArgs: []string{"-version"},
			strip:       true,
			env: func(o Outcome) []envapply.Action {
				return []envapply.Action{
					envapply.SetVariable("JAVA_HOME", o.Path),
					envapply.PrependPath(filepath.Join(o.Path, "bin")),
				}
			},
		},
		&recipe{
			desc:   Descriptor{ID: "maven", DisplayName: "Maven", Description: "Apache Maven", Category: CategoryTool, Prerequisites: []string{"jdk"}},
			target: version.Target{ID: "maven", Source: version.GitHubSource{Repo: "apache/maven", Parse: func(tag string) string { return strings.TrimPrefix(tag, "maven-") }}, Fallback: MavenVersion},
			official: func(Platform) string {
				return "https://archive.apache.org/dist/maven/maven-3"
			},
			locate: func(v string, p Platform) (artifact, error) {
				return artifact{Suffix: fmt.Sprintf("%s/binaries/apache-maven-%s-bin.zip", v, v)}, nil
			},
			binary: "bin/mvn",
			strip:  true,
			env: func(o Outcome) []envapply.Action {
				return []envapply.Action{
					envapply.SetVariable("MAVEN_HOME", o.Path),
					envapply.PrependPath(filepath.Join(o.Path, "bin")),
				}
			},
		},
		&recipe{
			desc:   Descriptor{ID: "gradle", DisplayName: "Gradle", Description: "Gradle build tool", Category: CategoryTool, Prerequisites: []string{"jdk"}},
			target: version.Target{ID: "gradle", Source: version.GradleSource{}, Fallback: GradleVersion},
			official: func(Platform) string {
				return "https://services.gradle.org/distributions"
			},
			locate: func(v string, p Platform) (artifact, error) {
				return artifact{Suffix: fmt.Sprintf("gradle-%s-bin.zip", v)}, nil
			},
			binary: "bin/gradle",
			strip:  true,
			env: func(o Outcome) []envapply.Action {
				return []envapply.Action{
					envapply.SetVariable("GRADLE_HOME", o.Path),
					envapply.PrependPath(filepath.Join(o.Path, "bin")),
				}
			},
		},
		&recipe{
			desc:   Descriptor{ID: "mysql", DisplayName: "MySQL", Description: "MySQL Community Server", Category: CategoryDatabase},
			target: version.Target{ID: "mysql", Fallback: MySQLVersion},
			official: func(Platform) string {
				return "https://dev.mysql.com/get/Downloads"
			},
			locate: func(v string, p Platform) (artifact, error) {
				if p.OS != "windows" || p.Arch != "amd64" {
					return artifact{}, unsupported("mysql", p)
				}
				series := v
				if parts := strings.SplitN(v, ".", 3); len(parts) >= 2 {
					series = parts[0] + "." + parts[1]
				}
				return artifact{Suffix: fmt.Sprintf("MySQL-%s/mysql-%s-winx64.zip", series, v)}, nil
			},
			binary:    "bin/mysqld",
			strip:     true,
			configure: configureMySQL,
		},
		newPostgres(),
		newRust(),
		newMiniconda(),
		&recipe{
			desc:   Descriptor{ID: "mingw", DisplayName: "MinGW-w64", Description: "GCC for Windows (winlibs build)", Category: CategoryTool},
			target: version.Target{ID: "mingw", Fallback: MingwVersion},
			official: func(Platform) string {
				return "https://github.com/brechtsanders/winlibs_mingw/releases/download"
			},
			locate: func(v string, p Platform) (artifact, error) {
				if p.OS != "windows" || p.Arch != "amd64" {
					return artifact{}, unsupported("mingw", p)
				}
				asset, err := winlibsAsset(v)
				if err != nil {
					return artifact{}, err
				}
				return artifact{Suffix: v + "/" + asset}, nil
			},
			binary: "bin/gcc",
			strip:  true,
		},
		&recipe{
			desc:   Descriptor{ID: "pycharm", DisplayName: "PyCharm", Description: "PyCharm Community Edition", Category: CategoryIDE},
			target: version.Target{ID: "pycharm", Source: version.JetBrainsSource{Code: "PCC"}, Fallback: PyCharmVersion},
			official: func(Platform) string {
				return "https://download.jetbrains.com/python"
			},
			locate: func(v string, p Platform) (artifact, error) {
				switch {
				case p.OS == "windows" && p.Arch == "amd64":
					return artifact{Suffix: fmt.Sprintf("pycharm-community-%s.win.zip", v)}, nil
				case p.OS == "linux" && p.Arch == "amd64":
					return artifact{Suffix: fmt.Sprintf("pycharm-community-%s.tar.gz", v)}, nil
				case p.OS == "linux" && p.Arch == "arm64":
					return artifact{Suffix: fmt.Sprintf("pycharm-community-%s-aarch64.tar.gz", v)}, nil
				}
				return artifact{}, unsupported("pycharm", p)
			},
			binary: "bin/pycharm",
			strip:  true,
			env: func(o Outcome) []envapply.Action {
				return []envapply.Action{envapply.PrependPath(filepath.Join(o.Path, "bin"))}
			},
			// Running the launcher would open the IDE.
			probe: productInfoVersion,
		},
		&recipe{
			desc:   Descriptor{ID: "vscode", DisplayName: "VS Code", Description: "Visual Studio Code (portable)", Category: CategoryIDE},
			target: version.Target{ID: "vscode", Source: version.GitHubSource{Repo: "microsoft/vscode"}, Fallback: VSCodeVersion},
			official: func(Platform) string {
				return "https://update.code.visualstudio.com"
			},
			locate: func(v string, p Platform) (artifact, error) {
				var plat string
				switch p.OS {
				case "windows":
					plat = fmt.Sprintf("win32-%s-archive", p.Arch)
					if p.Arch == "amd64" {
						plat = "win32-x64-archive"
					}
				case "linux":
					plat = "linux-x64"
					if p.Arch == "arm64" {
						plat = "linux-arm64"
					}
				default:
					return artifact{}, unsupported("vscode", p)
				}
				ext := archiveExt(p)
				return artifact{
					Suffix:   fmt.Sprintf("%s/%s/stable", v, plat),
					FileName: fmt.Sprintf("vscode-%s-%s.%s", v, plat, ext),
					Format:   fetch.FormatFromName("." + ext),
				}, nil
			},
			binary: "bin/code",
			strip:  true,
			env: func(o Outcome) []envapply.Action {
				return []envapply.Action{envapply.PrependPath(filepath.Join(o.Path, "bin"))}
			},
		},
	}

	out := make(Catalog, len(defs))
	for _, d := range defs {
		out[d.Describe().ID] = d
	}
	return out
}

// Catalog is the closed set of installers keyed by tool id.
type Catalog map[string]Installer

// Default returns the built-in catalog.
func Default() Catalog {
	return newDefinitions()
}

// IDs returns every tool id in the catalog, sorted.
func (c Catalog) IDs() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the installer for id.
func (c Catalog) Lookup(id string) (Installer, error) {
	inst, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}
	return inst, nil
}

// KnownTools returns the ids of every built-in tool.
func KnownTools() []string {
	return Default().IDs()
}
