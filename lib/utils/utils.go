package utils

// ToCmdLine 将字符串列表转换成命令行
func ToCmdLine(cmds ...string) [][]byte {
	args := make([][]byte, 0, len(cmds))
	for _, cmd := range cmds {
		args = append(args, []byte(cmd))
	}
	return args
}

// ToCmdLine2 以命令名+字符串参数的形式构建命令行
func ToCmdLine2(commandName string, args ...string) [][]byte {
	result := make([][]byte, len(args)+1)
	result[0] = []byte(commandName)
	for i, s := range args {
		result[i+1] = []byte(s)
	}
	return result
}

// ToCmdLine3 以命令名+字节参数的形式构建命令行
func ToCmdLine3(commandName string, args ...[]byte) [][]byte {
	result := make([][]byte, len(args)+1)
	result[0] = []byte(commandName)
	for i := range args {
		result[i+1] = args[i]
	}
	return result
}
