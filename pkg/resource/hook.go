package resource

// AttachHook appends a Hook label recording a hook's binding to a
// resource — the structured-label treatment the original implementation
// expresses as InternalHook::AddHook{key, value}, restored here since
// spec.md's labels field already lists Hook as a LabelVariant rather
// than introducing a separate Hook entity. Idempotent: attaching the
// same (key, value) pair twice is a no-op, via MergeLabels'
// de-duplication.
func AttachHook(current []Label, key, value string) []Label {
	return MergeLabels(current, []Label{{Variant: LabelHook, Key: key, Value: value}}, nil)
}

// SetHookStatus upserts the HookStatus label for key to value. A hook's
// status (e.g. "running", "succeeded", "failed") is single-valued per
// key, unlike a plain attached hook, so any prior status label for the
// same key is removed before the new one is added.
func SetHookStatus(current []Label, key, value string) []Label {
	var stale []Label
	for _, l := range current {
		if l.Variant == LabelHookStatus && l.Key == key {
			stale = append(stale, l)
		}
	}
	return MergeLabels(current, []Label{{Variant: LabelHookStatus, Key: key, Value: value}}, stale)
}
