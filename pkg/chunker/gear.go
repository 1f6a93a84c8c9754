package chunker

// gearTable 是 Gear Hash 的 256 项随机表。
// 用固定种子的 splitmix64 生成，保证所有进程切分结果一致。
var gearTable [256]uint64

const gearSeed uint64 = 0x5661756c74465321

func init() {
	x := gearSeed
	for i := range gearTable {
		x += 0x9e3779b97f4a7c15
		z := x
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		gearTable[i] = z ^ (z >> 31)
	}
}
