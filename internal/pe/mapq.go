package pe

import "math"

// GetMAPQ computes a Phred-scaled mapping quality from alignment
// identity, candidate multiplicity, and best/second-best error counts,
// including a repeated-squaring identity dampening term and a
// candidate-count penalty. The returned value is already shifted left
// by one bit so callers can OR in a strand/orientation flag in the low
// bit.
//
// numPositiveCandidates/numNegativeCandidates are the read's own
// pre-pairing candidate counts; single-end callers pass (0, 0).
func GetMAPQ(numPositiveCandidates, numNegativeCandidates int, alignmentLength uint16, minNumErrors int, numBestMappings int, secondMinNumErrors int, numSecondBestMappings int, errorThreshold int) uint8 {
	alignmentIdentity := 1 - float64(minNumErrors)/float64(alignmentLength)

	var mapq int
	if numBestMappings > 1 {
		mapq = int(-4.343 * math.Log(1-1.0/float64(numBestMappings)))
	} else {
		if secondMinNumErrors > errorThreshold {
			secondMinNumErrors = 2*errorThreshold + 1
		}
		mapq = int(60*(1-float64(minNumErrors)/float64(secondMinNumErrors)) + .499)
		tmp := alignmentIdentity * alignmentIdentity
		tmp = tmp * tmp
		tmp = tmp * tmp
		if alignmentIdentity < 0.98 {
			mapq = int(float64(mapq)*tmp + .499)
		}
	}

	if numSecondBestMappings > 0 {
		mapq -= int(4.343*math.Log(float64(numSecondBestMappings+1)) + 0.499)
	}
	if numPositiveCandidates > 1 || numNegativeCandidates > 1 {
		mapq -= int(4.343*math.Log(float64(numPositiveCandidates+numNegativeCandidates)) + 0.499)
	}

	if mapq > 60 {
		mapq = 60
	}
	if mapq < 0 {
		mapq = 0
	}

	mapq <<= 1
	return uint8(mapq)
}
