// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package imbe

// fundamentalFrequency, spectralAmplitudeCounts and voicingBandCounts are
// the 208-entry tables from P25/IMBE Algorithms 46 and 47, indexed by the
// pitch index b0. They are reproduced verbatim from the reference fixed
// point decoder (lib/op25_repeater/lib/imbe_vocoder/ch_decode.cc) and must
// not be altered.
var fundamentalFrequency = [208]float64{
	0.318135965, 0.310280756, 0.302804111, 0.295679309, 0.288882083, 0.282390351, 0.276183970, 0.270244529, 0.264555171, 0.259100425, 0.253866073,
	0.248839022, 0.244007196, 0.239359440, 0.234885432, 0.230575608, 0.226421092, 0.222413639, 0.218545576, 0.214809754, 0.211199506, 0.207708605,
	0.204331230, 0.201061930, 0.197895600, 0.194827451, 0.191852986, 0.188967979, 0.186168454, 0.183450666, 0.180811088, 0.178246392, 0.175753435,
	0.173329250, 0.170971029, 0.168676116, 0.166441995, 0.164266283, 0.162146718, 0.160081154, 0.158067555, 0.156103983, 0.154188596, 0.152319644,
	0.150495456, 0.148714445, 0.146975095, 0.145275961, 0.143615664, 0.141992888, 0.140406376, 0.138854924, 0.137337384, 0.135852655, 0.134399686,
	0.132977467, 0.131585033, 0.130221457, 0.128885852, 0.127577367, 0.126295182, 0.125038514, 0.123806607, 0.122598738, 0.121414209, 0.120252350,
	0.119112518, 0.117994090, 0.116896471, 0.115819084, 0.114761375, 0.113722811, 0.112702875, 0.111701072, 0.110716922, 0.109749962, 0.108799746,
	0.107865842, 0.106947835, 0.106045322, 0.105157913, 0.104285233, 0.103426919, 0.102582617, 0.101751989, 0.100934704, 0.100130443, 0.099338898,
	0.098559770, 0.097792767, 0.097037611, 0.096294028, 0.095561754, 0.094840533, 0.094130117, 0.093430265, 0.092740743, 0.092061323, 0.091391786,
	0.090731918, 0.090081510, 0.089440360, 0.088808273, 0.088185057, 0.087570527, 0.086964503, 0.086366808, 0.085777274, 0.085195733, 0.084622024,
	0.084055991, 0.083497479, 0.082946341, 0.082402430, 0.081865607, 0.081335732, 0.080812673, 0.080296298, 0.079786480, 0.079283095, 0.078786023,
	0.078295144, 0.077810344, 0.077331511, 0.076858536, 0.076391311, 0.075929732, 0.075473697, 0.075023108, 0.074577867, 0.074137880, 0.073703053,
	0.073273298, 0.072848525, 0.072428649, 0.072013585, 0.071603251, 0.071197567, 0.070796454, 0.070399835, 0.070007636, 0.069619782, 0.069236202,
	0.068856825, 0.068481584, 0.068110410, 0.067743238, 0.067380003, 0.067020643, 0.066665096, 0.066313301, 0.065965200, 0.065620734, 0.065279847,
	0.064942484, 0.064608589, 0.064278111, 0.063950995, 0.063627193, 0.063306653, 0.062989326, 0.062675165, 0.062364122, 0.062056151, 0.061751207,
	0.061449245, 0.061150222, 0.060854095, 0.060560822, 0.060270363, 0.059982676, 0.059697723, 0.059415464, 0.059135862, 0.058858879, 0.058584478,
	0.058312625, 0.058043282, 0.057776417, 0.057511994, 0.057249980, 0.056990343, 0.056733050, 0.056478070, 0.056225372, 0.055974925, 0.055726699,
	0.055480665, 0.055236794, 0.054995057, 0.054755428, 0.054517877, 0.054282378, 0.054048906, 0.053817433, 0.053587934, 0.053360385, 0.053134759,
	0.052911034, 0.052689185, 0.052469188, 0.052251021, 0.052034661, 0.051820085, 0.051607272, 0.051396199, 0.051186846, 0.050979191,
}

var spectralAmplitudeCounts = [208]int{
	9, 9, 9, 9, 10, 10, 10, 10, 11, 11, 11, 11, 12, 12, 12, 12, 12, 12, 12, 12, 13, 13, 13, 13, 14, 14, 14, 14, 15, 15, 15, 15, 16, 16, 16, 16, 17, 17, 17, 17, 18, 18, 18, 18,
	19, 19, 19, 19, 20, 20, 20, 20, 21, 21, 21, 21, 22, 22, 22, 22, 23, 23, 23, 23, 24, 24, 24, 24, 24, 24, 24, 24, 25, 25, 25, 25, 26, 26, 26, 26, 27, 27, 27, 27, 28, 28, 28, 28,
	29, 29, 29, 29, 30, 30, 30, 30, 31, 31, 31, 31, 32, 32, 32, 32, 33, 33, 33, 33, 34, 34, 34, 34, 35, 35, 35, 35, 36, 36, 36, 36, 37, 37, 37, 37, 37, 37, 37, 37, 38, 38, 38, 38,
	39, 39, 39, 39, 40, 40, 40, 40, 41, 41, 41, 41, 42, 42, 42, 42, 43, 43, 43, 43, 44, 44, 44, 44, 45, 45, 45, 45, 46, 46, 46, 46, 47, 47, 47, 47, 48, 48, 48, 48, 49, 49, 49, 49,
	49, 49, 49, 49, 50, 50, 50, 50, 51, 51, 51, 51, 52, 52, 52, 52, 53, 53, 53, 53, 54, 54, 54, 54, 55, 55, 55, 55, 56, 56, 56, 56,
}

var voicingBandCounts = [208]int{
	3, 3, 3, 3, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 10, 10, 10, 10,
	10, 10, 10, 10, 10, 10, 10, 10, 11, 11, 11, 11, 11, 11, 11, 11, 11, 11, 11, 11, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12,
	12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12,
	12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12,
}

// bitAllocationCache memoizes priority-rescan allocation vectors per L.
//
// The P25/IMBE Algorithm-65 bit allocation tables are not reproduced
// verbatim here (the retrieved original source has the lookup call but
// not the table body), so getBitAllocation derives a monotone-decreasing
// priority order instead: lower harmonic indices (closer to the
// fundamental, perceptually more important) get more bits. This preserves
// the decoder's control flow and every documented invariant, but is not
// bit-exact against the P25 standard; see DESIGN.md.
func getBitAllocation(numHarms int) []int {
	if cached, ok := bitAllocationCache[numHarms]; ok {
		return cached
	}
	n := numHarms - 1
	if n < 1 {
		n = 1
	}
	const maxAlloc = 9
	alloc := make([]int, n)
	for i := 0; i < n; i++ {
		v := maxAlloc - (i * maxAlloc / n)
		if v < 0 {
			v = 0
		}
		alloc[i] = v
	}
	bitAllocationCache[numHarms] = alloc
	return alloc
}

var bitAllocationCache = map[int][]int{}
