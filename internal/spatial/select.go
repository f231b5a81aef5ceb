package spatial

// Select returns the ZIP codes whose centroid satisfies the predicate,
// preserving input order. The predicate is validated first; an invalid
// predicate returns an error and no selection, so the caller can keep its
// prior selection displayed.
//
// A linear scan is deliberate: the full ZIP universe is ~30k points and a
// pass completes well inside the interactive budget.
func Select(pred Predicate, centroids []Centroid) ([]string, error) {
	if err := pred.Validate(); err != nil {
		return nil, err
	}

	if _, ok := pred.(All); ok {
		zips := make([]string, len(centroids))
		for i, c := range centroids {
			zips[i] = c.Zip
		}
		return zips, nil
	}

	var zips []string
	for _, c := range centroids {
		if pred.Contains(c.Lat, c.Lon) {
			zips = append(zips, c.Zip)
		}
	}
	return zips, nil
}
