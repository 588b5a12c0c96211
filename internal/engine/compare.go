package engine

type CompareEqualAB[A any, B any] func(key string, desired A, observed B) bool

type CompareCallback[A any, B any] func(key string, desired A, observed B)

/*
 * CompareEntities walks a desired map and an observed map and fires the
 * callbacks: onAdded for keys only desired, onRemoved for keys only
 * observed, onChanged when both exist but compareFunction says they
 * differ.
 */
func CompareEntities[A any, B any](desired map[string]A, observed map[string]B, compareFunction CompareEqualAB[A, B], onAdded CompareCallback[A, B], onRemoved CompareCallback[A, B], onChanged CompareCallback[A, B]) {
	var zeroA A
	var zeroB B

	// removed or changed keys
	for key, observedValue := range observed {
		if desiredValue, ok := desired[key]; ok {
			if !compareFunction(key, desiredValue, observedValue) {
				onChanged(key, desiredValue, observedValue)
			}
		} else {
			onRemoved(key, zeroA, observedValue)
		}
	}

	// added keys
	for key, desiredValue := range desired {
		if _, ok := observed[key]; !ok {
			onAdded(key, desiredValue, zeroB)
		}
	}
}
