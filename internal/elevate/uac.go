package elevate

import (
	"fmt"
	"strings"
)

// errorCancelled is ERROR_CANCELLED, returned when the UAC prompt is dismissed.
const errorCancelled = 1223

// uacScript builds the PowerShell that starts command elevated and exits with
// its exit code. Only a dismissed prompt exits with errorCancelled; any other
// launch failure prints the reason and exits 1.
func uacScript(command string, args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = psQuote(a)
	}
	argList := "@()"
	if len(quoted) > 0 {
		argList = "@(" + strings.Join(quoted, ",") + ")"
	}
	return fmt.Sprintf(
		"try { $p = Start-Process -FilePath %s -ArgumentList %s -Verb RunAs -WindowStyle Hidden -Wait -PassThru -ErrorAction Stop; exit $p.ExitCode } "+
			"catch { if ($_.Exception.NativeErrorCode -eq %d) { exit %d }; [Console]::Error.WriteLine($_.Exception.Message); exit 1 }",
		psQuote(command), argList, errorCancelled, errorCancelled,
	)
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
