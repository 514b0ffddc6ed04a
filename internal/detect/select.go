package detect

import "go.uber.org/zap"

// SelectBest arbitrates between the rice and wheat workflow responses.
//
// When both confidences fall strictly below the policy floor the result
// is ModelNone, carrying the confidence and source of whichever side
// scored higher. Otherwise the margin creates a dead zone around equal
// confidence: a model wins outright only when it leads by at least
// Margin, and inside the dead zone the higher raw confidence wins.
// Every >= comparison breaks exact ties toward rice, so identical inputs
// always produce identical output.
func SelectBest(riceResp, wheatResp any, policy Policy) Result {
	riceConf := MaxConfidence(riceResp)
	wheatConf := MaxConfidence(wheatResp)

	zap.L().Debug("model confidences",
		zap.Float64("rice", riceConf),
		zap.Float64("wheat", wheatConf),
	)

	if riceConf < policy.MinConfidence && wheatConf < policy.MinConfidence {
		zap.L().Info("both models below confidence threshold",
			zap.Float64("rice", riceConf),
			zap.Float64("wheat", wheatConf),
			zap.Float64("min_confidence", policy.MinConfidence),
		)
		if riceConf >= wheatConf {
			return Result{Chosen: ModelNone, Confidence: riceConf, Source: riceResp}
		}
		return Result{Chosen: ModelNone, Confidence: wheatConf, Source: wheatResp}
	}

	switch {
	case riceConf >= wheatConf+policy.Margin:
		return Result{Chosen: ModelRice, Confidence: riceConf, Source: riceResp}
	case wheatConf >= riceConf+policy.Margin:
		return Result{Chosen: ModelWheat, Confidence: wheatConf, Source: wheatResp}
	case riceConf >= wheatConf:
		// Close competition: within the margin of each other.
		return Result{Chosen: ModelRice, Confidence: riceConf, Source: riceResp}
	default:
		return Result{Chosen: ModelWheat, Confidence: wheatConf, Source: wheatResp}
	}
}
