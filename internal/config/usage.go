package config

import (
	"fmt"
	"strings"
)

const optionsText = `Options:
  -d, --debug              trace the request and the parsed metrics on stderr
  -t, --timeout=SECONDS    HTTP request timeout (default 10)
      --proxy=URL          send the request through this HTTP proxy
      --noproxy            ignore HTTP_PROXY/HTTPS_PROXY from the environment
  -u, --user=NAME          user for HTTP basic authentication
  -p, --password=SECRET    password or API token for HTTP basic authentication
      --noperfdata         do not append performance data to the output
  -w, --warning=INT        queue length above which WARNING is reported
  -c, --critical=INT       queue length above which CRITICAL is reported
      --config=PATH        read settings from a YAML file
  -v, --version            print the version and exit
  -h, --help               print this help and exit
      --man                print the full manual and exit
`

// UsageText returns the one-line synopsis
func UsageText() string {
	return fmt.Sprintf("Usage: %s [options] <base-url>\n", Program)
}

// HelpText returns the synopsis followed by the option list
func HelpText() string {
	return UsageText() + "\n" + optionsText
}

// VersionText returns the program name and build version
func VersionText() string {
	return fmt.Sprintf("%s %s\n", Program, Version)
}

// ManualText returns the full manual page
func ManualText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "NAME\n    %s - check the build queue length of a Jenkins server\n\n", Program)
	fmt.Fprintf(&b, "SYNOPSIS\n    %s [options] <base-url>\n\n", Program)
	b.WriteString(`DESCRIPTION
    Reads <base-url>/overallLoad/api/json and reports the latest one-minute
    queue length. The queue length is compared with the critical threshold
    first and the warning threshold second; a value strictly greater than a
    threshold breaches it. Thresholds set to -1, or not given, are ignored.

    The output is a single status line. Unless --noperfdata is given it is
    followed by "|" and the performance data:

        queue=<length>;<warning>;<critical> busy_executors=<count>

OPTIONS
`)
	for _, line := range strings.Split(strings.TrimPrefix(optionsText, "Options:\n"), "\n") {
		if line == "" {
			continue
		}
		b.WriteString("  " + line + "\n")
	}
	b.WriteString(`
ENVIRONMENT
    CHECK_JENKINS_USER, CHECK_JENKINS_PASSWORD, CHECK_JENKINS_TIMEOUT
        override the config file and are overridden by command line flags.
    HTTP_PROXY, HTTPS_PROXY, NO_PROXY
        used unless --proxy or --noproxy is given.

EXIT STATUS
    0 OK, 1 WARNING, 2 CRITICAL, 3 UNKNOWN. UNKNOWN is also returned for
    usage errors, --help, --version, --man, and when the server cannot be
    reached or returns an unexpected document.
`)
	return b.String()
}
