package texture

// earthRuns is a 120x60 equirectangular land mask, north at the top and -180 on the
// left. Each row alternates water and land run lengths, starting with water.
var earthRuns = []string{
	"120",
	"120",
	"120",
	"29 1 1 7 1 17 36 1 27",
	"23 1 4 1 3 3 1 17 12 3 52",
	"22 3 2 2 1 4 7 12 1 1 24 2 9 8 8 5 9",
	"18 2 1 3 3 1 2 3 1 2 6 11 25 1 4 4 1 16 3 3 10",
	"6 8 1 6 1 4 1 1 1 1 2 1 2 3 5 9 14 7 8 1 1 2 1 34",
	"1 3 1 27 4 4 3 5 6 1 10 7 1 47",
	"6 24 7 2 4 4 16 4 1 52",
	"6 3 1 1 1 17 6 2 8 1 16 5 1 1 1 42 2 2 4",
	"16 14 5 5 19 1 5 1 2 39 6 2 5",
	"17 16 1 7 16 1 1 1 3 43 6 2 6",
	"18 24 17 48 13",
	"20 19 2 2 16 48 13",
	"19 19 1 1 20 10 2 4 2 28 14",
	"19 18 20 5 1 2 2 3 4 3 1 26 16",
	"19 17 21 3 7 1 1 8 1 22 2 1 4 1 12",
	"20 15 23 1 2 3 7 30 2 1 2 1 13",
	"21 13 24 6 8 29 19",
	"23 8 1 1 24 44 19",
	"22 1 1 4 5 1 22 21 1 23 19",
	"23 1 1 3 6 1 20 17 1 6 4 17 20",
	"25 3 2 1 3 1 20 18 1 6 5 4 2 5 24",
	"26 5 3 1 1 1 18 18 1 5 6 3 4 4 24",
	"29 4 22 19 1 3 7 2 6 4 3 1 19",
	"31 1 4 1 18 20 11 1 6 1 1 2 23",
	"32 1 2 5 16 21 9 1 6 1 1 1 5 2 17",
	"35 6 16 4 1 15 10 1 6 1 4 1 20",
	"35 8 21 12 17 2 3 2 20",
	"34 9 21 11 19 1 2 4 19",
	"34 13 17 10 20 5 1 1 5 2 12",
	"33 16 16 8 34 2 1 1 9",
	"34 15 16 9 25 2 1 1 4 1 1 1 10",
	"35 13 17 9 46",
	"35 12 18 9 2 1 25 1 1 2 2 1 11",
	"37 10 17 9 2 2 24 8 11",
	"37 10 18 7 3 2 22 11 5 1 4",
	"37 8 20 7 3 1 22 13 9",
	"37 7 21 6 27 14 8",
	"37 7 22 5 28 13 8",
	"37 6 23 4 29 3 3 6 9",
	"36 5 66 4 7 1 1",
	"36 5 78 1",
	"36 3 70 1 8 1 1",
	"36 3 77 2 2",
	"36 2 82",
	"35 2 83",
	"36 2 82",
	"120",
	"120",
	"120",
	"39 1 80",
	"38 1 32 1 2 10 3 24 9",
	"35 5 17 26 1 33 3",
	"18 1 1 2 1 1 3 13 14 61 5",
	"8 2 1 25 13 66 5",
	"11 24 1 1 2 1 2 2 5 65 6",
	"4 114 2",
	"0 120",
}
