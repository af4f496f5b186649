// Package expiry sweeps for flags whose ExpiresAt has passed.
//
// Feature flags are meant to be short-lived; the ones that outlive their
// purpose accumulate as risk. The sweeper runs on a cron schedule, logs
// every expired flag, and, when auto-disable is configured, flips the
// expired flag's default to disabled through the management service so the
// change is audited like any other write.
package expiry
