package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeBridgeTXT creates TXT records for a bridge announcement.
func EncodeBridgeTXT(info BridgeInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyID:      info.ID,
		TXTKeyDevices: strconv.Itoa(info.Devices),
	}
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	version := info.Version
	if version == 0 {
		version = ProtocolVersion
	}
	txt[TXTKeyVersion] = strconv.Itoa(version)
	return txt
}

// DecodeBridgeTXT parses a bridge's TXT records. Only the id is required.
func DecodeBridgeTXT(txt TXTRecordMap) (BridgeInfo, error) {
	var info BridgeInfo

	id, ok := txt[TXTKeyID]
	if !ok || id == "" {
		return info, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyID)
	}
	info.ID = id
	info.Name = txt[TXTKeyName]

	if s, ok := txt[TXTKeyDevices]; ok {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return info, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyDevices, s)
		}
		info.Devices = n
	}
	if s, ok := txt[TXTKeyVersion]; ok {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return info, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyVersion, s)
		}
		info.Version = v
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
// A bare key maps to the empty string.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
