// Package scan turns the raw discovery primitive into a shared, deduplicated
// result list.
//
// A Scanner runs one bounded discovery burst at a time. The Aggregator folds
// a burst into a list of Devices, unique by address and sorted by name, and
// shares it between subscribers. The radio is started by the first
// subscriber and stopped when the last one has been gone for the grace
// period, so a quickly recreated view does not restart the scan.
//
// Failures end the result stream and are also delivered on Errors.
package scan
