package utils

// SafeDeref safely dereferences a string pointer and returns empty string if nil
func SafeDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SafeDerefInt32 returns 0 for a nil pointer
func SafeDerefInt32(i *int32) int {
	if i == nil {
		return 0
	}
	return int(*i)
}

// AppendUnique appends value unless it is already present
func AppendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
